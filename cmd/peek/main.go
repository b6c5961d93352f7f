package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/rybkr/gitpast/internal/gitcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	repo, err := gitcore.Open(".")
	if err != nil {
		log.Fatal(err)
	}

	if err := run(repo, os.Stdout, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "peek:", err)
		if errors.Is(err, errUsage) {
			printUsage()
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("bad usage")

func printUsage() {
	fmt.Println("Usage: peek <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("    status               Show the working tree status (mimics `git status -s`)")
	fmt.Println("  ls-files               Prints all files in the index (mimics `git ls-files -s`)")
	fmt.Println("    branch               Lists branches, marking the current one")
	fmt.Println(" rev-parse <rev>         Prints the commit a revision names")
	fmt.Println("   ls-tree <rev> [path]  Lists a tree (mimics `git ls-tree`)")
}

func run(repo *gitcore.Repository, w io.Writer, command string, args []string) error {
	switch command {
	case "status":
		return repo.PrintStatus(w)
	case "ls-files":
		return repo.PrintIndex(w)
	case "branch":
		return branchCmd(repo, w)
	case "rev-parse":
		if len(args) != 1 {
			return errUsage
		}
		commit, err := repo.Revision(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, commit.ID)
		return err
	case "ls-tree":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		return lsTreeCmd(repo, w, args[0], path)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func branchCmd(repo *gitcore.Repository, w io.Writer) error {
	branches := repo.Branches()
	names := make([]string, 0, len(branches))
	for ref := range branches {
		names = append(names, ref)
	}
	sort.Strings(names)

	for _, ref := range names {
		mark := " "
		if ref == repo.HeadRef() {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s %s\n", mark, strings.TrimPrefix(ref, "refs/heads/"), branches[ref].Short())
	}
	return nil
}

func lsTreeCmd(repo *gitcore.Repository, w io.Writer, rev, path string) error {
	commit, err := repo.Revision(rev)
	if err != nil {
		return err
	}
	tree := commit.Tree
	if path != "" {
		entry, err := repo.TreeEntryByPath(commit.Tree, path)
		if err != nil {
			return err
		}
		if !entry.IsTree() {
			return printEntry(w, entry, path)
		}
		tree = entry.ID
	}

	t, err := repo.ReadTree(tree)
	if err != nil {
		return err
	}
	for _, entry := range t.Entries {
		name := entry.Name
		if path != "" {
			name = strings.TrimSuffix(path, "/") + "/" + name
		}
		if err := printEntry(w, entry, name); err != nil {
			return err
		}
	}
	return nil
}

func printEntry(w io.Writer, entry gitcore.TreeEntry, name string) error {
	kind := "blob"
	switch {
	case entry.IsTree():
		kind = "tree"
	case entry.Mode == gitcore.ModeSubmodule:
		kind = "commit"
	}
	mode := entry.Mode
	if len(mode) < 6 {
		mode = strings.Repeat("0", 6-len(mode)) + mode
	}
	_, err := fmt.Fprintf(w, "%s %s %s\t%s\n", mode, kind, entry.ID, name)
	return err
}
