package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/unzip/internal/cmd/cat"
	"github.com/nguyengg/unzip/internal/cmd/extract"
	"github.com/nguyengg/unzip/internal/cmd/list"
)

var opts struct {
	List    list.Command    `command:"list" alias:"ls" description:"list the entries of a ZIP archive"`
	Cat     cat.Command     `command:"cat" description:"write entries to standard output"`
	Extract extract.Command `command:"extract" alias:"x" description:"extract entries to a directory"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
