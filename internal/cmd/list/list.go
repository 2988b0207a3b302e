package list

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/unzip"
	"github.com/nguyengg/unzip/internal/cli"
)

type Command struct {
	Raw  bool `long:"raw" description:"print exact byte counts instead of humanized sizes"`
	Args struct {
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

	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	for _, e := range arc.Entries() {
		size := humanize.IBytes(e.UncompressedSize)
		if c.Raw {
			size = fmt.Sprintf("%d", e.UncompressedSize)
		}

		modified := ""
		if !e.Modified.IsZero() {
			modified = e.Modified.Format("2006-01-02 15:04:05")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", size, modified, e.Name)
	}

	return w.Flush()
}
