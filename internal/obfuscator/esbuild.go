package obfuscator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/multierr"
)

var esbuildTargets = map[string]api.Target{
	"":       api.ESNext,
	"esnext": api.ESNext,
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
}

func esbuildTarget(name string) (api.Target, error) {
	target, ok := esbuildTargets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown target %q", name)
	}
	return target, nil
}

func esbuildCharset(name string) api.Charset {
	if strings.EqualFold(name, "ascii") {
		return api.CharsetASCII
	}
	return api.CharsetUTF8
}

func legalComments(keep bool) api.LegalComments {
	if keep {
		return api.LegalCommentsInline
	}
	return api.LegalCommentsNone
}

// runEsbuild transforms src and flattens esbuild's error messages into one error.
func runEsbuild(src string, opts api.TransformOptions) (string, error) {
	opts.Loader = api.LoaderJS
	result := api.Transform(src, opts)
	if len(result.Errors) > 0 {
		return "", messagesError(result.Errors)
	}
	return string(result.Code), nil
}

func messagesError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			errs = append(errs, fmt.Errorf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text))
		} else {
			errs = append(errs, errors.New(msg.Text))
		}
	}
	return multierr.Combine(errs...)
}
