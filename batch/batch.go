// Package batch runs scripts of file system operations stored as CSV.
//
// A script has the columns op, path, mode, offset, length, and data. Each row
// is one operation:
//
//	op,path,mode,offset,length,data
//	mkdir,/docs,,,,
//	create,/docs/readme.txt,rw-,,,
//	write,/docs/readme.txt,,0,,hello world
//	read,/docs/readme.txt,,6,100,
//	list,/docs,,,,
//
// Unused columns can be left empty.
package batch

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dargueta/quotafs"
	"github.com/dargueta/quotafs/errors"
	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
)

const (
	OpInit   = "init"
	OpMkdir  = "mkdir"
	OpCreate = "create"
	OpWrite  = "write"
	OpRead   = "read"
	OpList   = "list"
	OpStat   = "stat"
)

// DefaultMode is used by "create" when the mode column is empty.
const DefaultMode = "rw-"

// Step is one row of a script.
type Step struct {
	Op   string `csv:"op"`
	Path string `csv:"path"`
	// Mode is the permissions of a new file, as in "rw-" or "r-x".
	Mode   string `csv:"mode"`
	Offset int64  `csv:"offset"`
	// Length is the number of bytes to read. For writes, `Data` is padded with
	// null bytes up to this length.
	Length int    `csv:"length"`
	Data   string `csv:"data"`
}

// Result is the outcome of one step.
type Result struct {
	Line int    `csv:"line"`
	Op   string `csv:"op"`
	Path string `csv:"path"`
	// Status is "OK" or the name of the errno code of the failure.
	Status string `csv:"status"`
	// Count is the number of bytes read or written, or the number of entries
	// listed.
	Count   int    `csv:"count"`
	Output  string `csv:"output"`
	Message string `csv:"message"`
}

// StatusOK is the status of a step that succeeded.
const StatusOK = "OK"

// ParseScript decodes a CSV script.
func ParseScript(reader io.Reader) ([]*Step, error) {
	var steps []*Step
	err := gocsv.Unmarshal(reader, &steps)
	if err != nil {
		return nil, errors.ErrInvalidArgument.Wrap(err)
	}
	return steps, nil
}

// WriteResults encodes results as CSV, header included.
func WriteResults(results []*Result, writer io.Writer) error {
	return gocsv.Marshal(results, writer)
}

// ParseMode converts a string like "rw-" into permissions. Each of the three
// characters must be either the letter for its position or '-'.
func ParseMode(mode string) (quotafs.Permissions, error) {
	if len(mode) != 3 {
		return quotafs.Permissions{}, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("mode %q must be exactly 3 characters", mode),
		)
	}

	bits := [3]bool{}
	for i, letter := range []byte("rwx") {
		switch mode[i] {
		case letter:
			bits[i] = true
		case '-':
		default:
			return quotafs.Permissions{}, errors.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("invalid character %q at position %d of mode %q", mode[i], i, mode),
			)
		}
	}
	return quotafs.Permissions{Read: bits[0], Write: bits[1], Execute: bits[2]}, nil
}

// Run executes every step in order against `fs`, whether or not earlier steps
// failed. It returns one result per step, and an error combining the failures
// of every step that failed.
func Run(fs *quotafs.FileSystem, steps []*Step) ([]*Result, error) {
	results := make([]*Result, 0, len(steps))
	var failures *multierror.Error

	for i, step := range steps {
		// Line 1 is the header.
		result := &Result{Line: i + 2, Op: step.Op, Path: step.Path}
		count, output, err := runStep(fs, step)
		if err != nil {
			result.Status = errors.ErrnoOf(err).String()
			result.Message = err.Error()
			failures = multierror.Append(
				failures,
				fmt.Errorf("line %d: %s %q: %w", result.Line, step.Op, step.Path, err),
			)
		} else {
			result.Status = StatusOK
			result.Count = count
			result.Output = output
		}
		results = append(results, result)
	}
	return results, failures.ErrorOrNil()
}

func runStep(fs *quotafs.FileSystem, step *Step) (int, string, error) {
	switch strings.ToLower(step.Op) {
	case OpInit:
		return 0, "", fs.Init()

	case OpMkdir:
		return 0, "", fs.Mkdir(step.Path)

	case OpCreate:
		mode := step.Mode
		if mode == "" {
			mode = DefaultMode
		}
		perms, err := ParseMode(mode)
		if err != nil {
			return 0, "", err
		}
		return 0, "", fs.CreateFile(step.Path, perms)

	case OpWrite:
		data := []byte(step.Data)
		if step.Length > len(data) {
			data = append(data, make([]byte, step.Length-len(data))...)
		}
		n, err := fs.Write(step.Path, data, step.Offset)
		return n, "", err

	case OpRead:
		buffer := make([]byte, step.Length)
		n, err := fs.Read(step.Path, buffer, step.Offset)
		if err != nil {
			return 0, "", err
		}
		return n, strconv.Quote(string(buffer[:n])), nil

	case OpList:
		entries, err := fs.List(step.Path)
		if err != nil {
			return 0, "", err
		}
		names := make([]string, len(entries))
		for i, entry := range entries {
			names[i] = entry.Name()
			if entry.IsDir() {
				names[i] += "/"
			}
		}
		return len(entries), strings.Join(names, " "), nil

	case OpStat:
		entry, err := fs.Stat(step.Path)
		if err != nil {
			return 0, "", err
		}
		return int(entry.Size()), fmt.Sprintf("%s %s", entry.Mode(), entry.Kind()), nil

	default:
		return 0, "", errors.ErrNotSupported.WithMessage(
			fmt.Sprintf("unknown operation %q", step.Op),
		)
	}
}
