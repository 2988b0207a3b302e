package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/nguyengg/unzip"
	"github.com/nguyengg/unzip/internal/cli"
	"github.com/nguyengg/unzip/util"
	"github.com/schollz/progressbar/v3"
)

type Command struct {
	Dir         string `short:"d" long:"dir" description:"directory to extract into" default:"."`
	NoOverwrite bool   `long:"no-overwrite" description:"skip files that already exist at the target directory"`
	NoProgress  bool   `long:"no-progress" description:"do not display progress bars"`
	Args        struct {
		Archive string `positional-arg-name:"archive" description:"path or s3:// URI of the ZIP archive" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	src, closeFn, err := cli.OpenSource(ctx, c.Args.Archive)
	if err != nil {
		return err
	}
	defer closeFn()

	arc, err := unzip.New(src, func(o *unzip.Options) { o.Ctx = ctx })
	if err != nil {
		return err
	}

	entries := arc.Entries()
	success, n := 0, len(entries)
	buf := make([]byte, 32*1024)
	for i, e := range entries {
		logger := cli.NewLogger(i, n, e.Name)

		if err = c.extract(ctx, arc, e, buf); err == nil {
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("extract error: %v", err)
	}

	fmt.Fprintf(os.Stderr, "extracted %d/%d entries\n", success, n)
	return nil
}

func (c *Command) extract(ctx context.Context, arc *unzip.Archive, e unzip.Entry, buf []byte) error {
	path, err := securePath(c.Dir, e.Name)
	if err != nil {
		return err
	}

	if e.IsDir() {
		return os.MkdirAll(path, 0755)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent directories error: %w", err)
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if c.NoOverwrite {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	dst, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if c.NoOverwrite && os.IsExist(err) {
			return nil
		}

		return fmt.Errorf("create file error: %w", err)
	}

	r, err := arc.Open(e.Name, func(o *unzip.StreamOptions) { o.Ctx = ctx })
	if err != nil {
		_ = dst.Close()
		return err
	}

	var w io.Writer = dst
	if !c.NoProgress {
		bar := progressbar.DefaultBytes(int64(e.UncompressedSize), e.Name)
		w = io.MultiWriter(dst, bar)
	}

	_, err = util.CopyBufferWithContext(ctx, w, r, buf)
	_, _ = r.Close(), dst.Close()
	if err != nil {
		return fmt.Errorf(`extract to "%s" error: %w`, path, err)
	}

	return nil
}

// securePath joins the entry name to dir while refusing names that would
// escape it.
func securePath(dir, name string) (string, error) {
	p := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if p == "" || filepath.IsAbs(p) || p != filepath.Clean(p) || p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf(`entry name "%s" escapes the output directory`, name)
	}

	return filepath.Join(dir, p), nil
}
