package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/roach88/provguard/internal/harness"
	"github.com/roach88/provguard/internal/policy"
)

// DefaultSuiteFile is picked up from the working directory when --suite
// is not given.
const DefaultSuiteFile = "provguard.yaml"

// loadSuite resolves the suite from flags: --suite, else provguard.yaml in
// the working directory, else the built-in suite rooted at the working
// directory. --policy and --dir are applied on top. Every error is a
// *policy.ConfigError.
func loadSuite(opts *RootOptions) (*harness.Suite, error) {
	var (
		suite *harness.Suite
		err   error
	)

	switch {
	case opts.Suite != "":
		suite, err = harness.LoadSuite(opts.Suite)
	default:
		_, statErr := os.Stat(DefaultSuiteFile)
		switch {
		case statErr == nil:
			suite, err = harness.LoadSuite(DefaultSuiteFile)
		case errors.Is(statErr, fs.ErrNotExist):
			suite = harness.DefaultSuite(".")
		default:
			err = &policy.ConfigError{Message: "cannot access " + DefaultSuiteFile, Err: statErr}
		}
	}
	if err != nil {
		return nil, err
	}

	if opts.Policy != "" {
		p, err := policy.Load(opts.Policy)
		if err != nil {
			return nil, err
		}
		if suite, err = suite.WithPolicy(p); err != nil {
			return nil, err
		}
	}

	if opts.Dir != "" {
		suite = suite.WithDir(opts.Dir)
	}
	return suite, nil
}
