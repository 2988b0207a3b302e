package cat

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/nguyengg/unzip"
	"github.com/nguyengg/unzip/internal/cli"
)

type Command struct {
	ChunkSize int `long:"chunk-size" description:"number of compressed bytes per positional read"`
	Args      struct {
		Archive string   `positional-arg-name:"archive" description:"path or s3:// URI of the ZIP archive" required:"yes"`
		Files   []string `positional-arg-name:"file" description:"names of the entries to write to standard output" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk-size must be a positive integer")
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

	for _, name := range c.Args.Files {
		chunks, err := arc.Stream(name, func(o *unzip.StreamOptions) {
			o.Ctx = ctx
			if c.ChunkSize > 0 {
				o.ChunkSize = c.ChunkSize
			}
		})
		if err != nil {
			return err
		}

		for chunk, err := range chunks {
			if err != nil {
				return fmt.Errorf(`stream entry "%s" error: %w`, name, err)
			}

			if _, err = os.Stdout.Write(chunk); err != nil {
				return err
			}
		}
	}

	return nil
}
