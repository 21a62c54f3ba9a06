package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"schedparser/internal/external/fetcher"
	"schedparser/internal/model"
)

// options аргументы командной строки
type options struct {
	groups   string
	all      bool
	daemon   bool
	migrate  bool
	dryRun   bool
	url      string
	file     string
	name     string
	addGroup string
	changes  int
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var o options

	fs := flag.NewFlagSet("schedparser", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.groups, "groups", "", "comma separated group IDs to sync once")
	fs.BoolVar(&o.all, "all", false, "sync all active groups once")
	fs.BoolVar(&o.daemon, "daemon", false, "run the cron scheduler and the health server")
	fs.BoolVar(&o.migrate, "migrate", false, "create database schema")
	fs.BoolVar(&o.dryRun, "dry-run", false, "parse a page and print lessons without the database")
	fs.StringVar(&o.url, "url", "", "schedule page URL for -dry-run")
	fs.StringVar(&o.file, "file", "", "schedule page file for -dry-run")
	fs.StringVar(&o.name, "name", "", "group name for -dry-run")
	fs.StringVar(&o.addGroup, "add-group", "", `register a group: "ID,NAME,URL"`)
	fs.IntVar(&o.changes, "changes", 0, "print N latest schedule changes of the group given in -groups")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, o.validate()
}

func (o options) validate() error {
	modes := 0
	for _, on := range []bool{o.groups != "" && o.changes == 0, o.all, o.daemon, o.dryRun, o.addGroup != "", o.changes > 0} {
		if on {
			modes++
		}
	}
	switch {
	case modes > 1:
		return fmt.Errorf("-groups, -all, -daemon, -dry-run, -add-group and -changes are mutually exclusive")
	case modes == 0 && !o.migrate:
		return fmt.Errorf("nothing to do: pass -groups, -all, -daemon, -migrate, -dry-run, -add-group or -changes")
	case o.dryRun && (o.url == "") == (o.file == ""):
		return fmt.Errorf("-dry-run needs exactly one of -url or -file")
	case o.dryRun && o.migrate:
		return fmt.Errorf("-dry-run does not touch the database, -migrate is not allowed")
	case o.changes < 0:
		return fmt.Errorf("-changes must be positive")
	}
	if o.changes > 0 {
		ids, err := parseGroupIDs(o.groups)
		if err != nil {
			return err
		}
		if len(ids) != 1 {
			return fmt.Errorf("-changes needs exactly one group in -groups")
		}
	}
	return nil
}

// parseGroupIDs разбирает список "1,2,3", повторы отбрасываются
func parseGroupIDs(s string) ([]int, error) {
	var ids []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid group id %q", part)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no group ids in %q", s)
	}
	return ids, nil
}

// parseGroupSpec разбирает "ID,NAME,URL"
func parseGroupSpec(s string) (*model.GroupInfo, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf(`group must be "ID,NAME,URL", got %q`, s)
	}
	id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid group id %q", parts[0])
	}
	name, url := strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if name == "" || url == "" {
		return nil, fmt.Errorf("group name and url must not be empty")
	}
	return &model.GroupInfo{GroupID: id, Name: name, URL: url, IsActive: true}, nil
}

// fileFetcher читает страницу с диска вместо HTTP
type fileFetcher struct {
	path string
}

func (f fileFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrFetchFailure, err)
	}
	return fetcher.DecodeBody(data)
}
