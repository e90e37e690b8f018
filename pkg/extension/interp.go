package extension

import (
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// SourceRoot is the GOPATH-style source tree inside an extension package.
const SourceRoot = "src"

// SplitSymbol splits "<import path>.<Func>" at the last dot after the last slash.
func SplitSymbol(symbol string) (pkgPath, fn string, err error) {
	slash := strings.LastIndex(symbol, "/")
	dot := strings.LastIndex(symbol, ".")
	if dot <= slash || dot == len(symbol)-1 {
		return "", "", fmt.Errorf("%w: %q is not <import path>.<Func>", ErrSymbolNotFound, symbol)
	}
	return symbol[:dot], symbol[dot+1:], nil
}

// Interpret loads the package named by symbol from the Go sources in src and
// returns its constructor. Each call creates a fresh interpreter, so packages
// never share interpreted state.
func Interpret(src fs.FS, symbol string) (Factory, error) {
	pkgPath, fn, err := SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{
		GoPath:               ".",
		SourcecodeFilesystem: src,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("failed to load kiln symbols: %w", err)
	}

	if _, err := i.Eval(fmt.Sprintf("import entry %q", pkgPath)); err != nil {
		return nil, fmt.Errorf("import %s: %w", pkgPath, err)
	}
	v, err := i.Eval("entry." + fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, symbol, err)
	}
	if v.Kind() != reflect.Func || v.Type().NumIn() != 0 || v.Type().NumOut() != 1 {
		return nil, fmt.Errorf("entrypoint %s has incorrect signature (expected: func() extension.Module)", symbol)
	}

	return func() Module {
		out := v.Call(nil)[0]
		if !out.IsValid() || (out.Kind() == reflect.Interface && out.IsNil()) {
			return nil
		}
		m, ok := out.Interface().(Module)
		if !ok {
			panic(fmt.Sprintf("entrypoint %s returned %s, which does not implement extension.Module", symbol, out.Type()))
		}
		return m
	}, nil
}
