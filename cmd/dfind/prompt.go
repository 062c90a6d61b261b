package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jamesainslie/dfind/pkg/dfind/recent"
)

// chooseRecentFolder prints the numbered recent-folder list and reads a
// choice from in. It returns "" when the list is empty or the choice is
// not a listed number; both cases have already been reported on out.
func chooseRecentFolder(in io.Reader, out io.Writer, list *recent.List) (string, error) {
	folders := list.Folders()
	if len(folders) == 0 {
		fmt.Fprintln(out, "No recent folders found.")
		return "", nil
	}

	fmt.Fprintln(out, "Choose a folder from the list below:")
	for i, f := range folders {
		fmt.Fprintf(out, "%d. %s\n", i+1, f)
	}
	fmt.Fprint(out, "Enter the number of the folder to scan: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading choice: %w", err)
	}

	if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
		if folder, ok := list.Pick(n); ok {
			return folder, nil
		}
	}
	fmt.Fprintln(out, "Invalid choice.")
	return "", nil
}
