package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/kiln/internal/artifacts"
	"github.com/aretw0/kiln/pkg/dsl"
	"github.com/aretw0/kiln/pkg/unit"
	"gopkg.in/yaml.v3"
)

// gen-program writes a small sample project: a base program on the search
// path, an empty mods directory and a kiln.yaml pointing at both.
func main() {
	targetDir := "examples/sample-program"
	if len(os.Args) > 1 {
		targetDir = os.Args[1]
	}
	if err := generate(targetDir); err != nil {
		fmt.Fprintf(os.Stderr, "gen-program: %v\n", err)
		os.Exit(1)
	}
}

func program() *dsl.Builder {
	b := dsl.New()

	b.Add("sample.Main").
		Flags(unit.FlagPublic).
		Field("shapes", "sample.shapes.Registry").
		Method("main", unit.FlagStatic|unit.FlagPublic).
		Params("kiln.lang.String").
		Block(0).Goto(1, 2).
		Block(1).Store(1, "sample.shapes.Circle").Goto(3).
		Block(2).Store(1, "sample.shapes.Square").Goto(3).
		Block(3)

	b.Add("sample.shapes.Registry").
		Method("register", unit.FlagPublic).Params("sample.shapes.Shape")

	b.Add("sample.shapes.Shape").Interface().
		Method("area", unit.FlagPublic|unit.FlagAbstract).Returns("double")
	b.Add("sample.shapes.Base").Implements("sample.shapes.Shape").Flags(unit.FlagAbstract)
	b.Add("sample.shapes.Circle").Extends("sample.shapes.Base").Field("radius", "double")
	b.Add("sample.shapes.Square").Extends("sample.shapes.Base").Field("side", "double")

	return b
}

func generate(dir string) error {
	fmt.Printf("Generating sample program in: %s\n", dir)

	units, err := program().Build()
	if err != nil {
		return err
	}
	classes := filepath.Join(dir, "classes")
	paths, err := artifacts.WriteDir(classes, units...)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Printf("  wrote %s\n", p)
	}

	if err := os.MkdirAll(filepath.Join(dir, "mods"), 0o755); err != nil {
		return err
	}

	cfg, err := yaml.Marshal(map[string]string{
		"entry":     "sample.Main",
		"classpath": "classes",
		"mods":      "mods",
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "kiln.yaml"), cfg, 0o644); err != nil {
		return err
	}

	fmt.Println("Done. Run it with: cd", dir, "&& kiln run")
	return nil
}
