package extension

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// ErrSymbolNotFound is returned when no resolver knows an entrypoint symbol.
var ErrSymbolNotFound = errors.New("entrypoint symbol not found")

// Factory is the zero-argument constructor behind an entrypoint symbol.
type Factory func() Module

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register binds symbol to a constructor linked into the host binary.
// If a factory with the same symbol exists, it is overwritten.
func Register(symbol string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[symbol] = f
}

// Unregister removes symbol. Mostly useful in tests.
func Unregister(symbol string) {
	mu.Lock()
	defer mu.Unlock()
	delete(factories, symbol)
}

// Registered returns every statically registered symbol, sorted.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func lookupStatic(symbol string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[symbol]
	return f, ok
}

// Resolve finds the factory for symbol: registered symbols first, then the Go
// sources in src (may be nil).
func Resolve(symbol string, src fs.FS) (Factory, error) {
	if f, ok := lookupStatic(symbol); ok {
		return f, nil
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	if _, err := fs.Stat(src, SourceRoot); err != nil {
		return nil, fmt.Errorf("%w: %s (package ships no %s/ tree)", ErrSymbolNotFound, symbol, SourceRoot)
	}
	return Interpret(src, symbol)
}

// Instantiate calls f, turning a panicking constructor into an error.
func Instantiate(symbol string, f Factory) (m Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("construct %s: panic: %v", symbol, r)
		}
	}()
	m = f()
	if m == nil {
		return nil, fmt.Errorf("construct %s: constructor returned nil", symbol)
	}
	return m, nil
}
