package export

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// isTerminal reports whether stdout is connected to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// RunWizard walks the user through a snapshot export, renders it, and
// prints the written paths. positions may be nil; when taken from the
// position cache the snapshot matches the last interactive layout.
func RunWizard(ds *model.Dataset, positions map[string]model.Point) (Result, error) {
	if ds == nil || len(ds.Nodes) == 0 {
		return Result{}, errors.New("export wizard: dataset has no nodes")
	}

	printBanner()

	base := "./site-map"
	format := "both"
	size := fmt.Sprintf("%dx%d", DefaultWidth, DefaultHeight)
	theme := "dark"
	labels := true

	form := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Output base path").
				Description("Format extensions are appended automatically").
				Value(&base).
				Placeholder("./site-map").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("path must not be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Format").
				Options(
					huh.NewOption("PNG and SVG", "both"),
					huh.NewOption("PNG only", "png"),
					huh.NewOption("SVG only", "svg"),
				).
				Value(&format),
			huh.NewSelect[string]().
				Title("Canvas size").
				Options(
					huh.NewOption("1280 x 800", "1280x800"),
					huh.NewOption("1600 x 1000", "1600x1000"),
					huh.NewOption("2560 x 1600", "2560x1600"),
				).
				Value(&size),
			huh.NewSelect[string]().
				Title("Theme").
				Options(
					huh.NewOption("Dark", "dark"),
					huh.NewOption("Light", "light"),
				).
				Value(&theme),
			huh.NewConfirm().
				Title("Draw labels?").
				Description("Labels show on nodes large enough to carry them").
				Value(&labels).
				Affirmative("Yes").
				Negative("No"),
		),
	)
	if err := form.Run(); err != nil {
		return Result{}, err
	}

	pngPath, svgPath, err := SnapshotPaths(base, format)
	if err != nil {
		return Result{}, err
	}
	width, height, err := ParseSize(size)
	if err != nil {
		return Result{}, err
	}

	fmt.Println("")
	fmt.Printf("Laying out %d nodes...\n", len(ds.Nodes))

	res, err := Snapshot(ds, Options{
		PNGPath:   pngPath,
		SVGPath:   svgPath,
		Width:     width,
		Height:    height,
		Theme:     theme,
		Labels:    labels,
		Positions: positions,
	})
	if err != nil {
		return Result{}, err
	}

	fmt.Println("")
	fmt.Println("Wrote:")
	if res.PNGPath != "" {
		fmt.Printf("  %s\n", res.PNGPath)
	}
	if res.SVGPath != "" {
		fmt.Printf("  %s\n", res.SVGPath)
	}
	if !res.Settled {
		fmt.Printf("Layout was still moving after %d ticks; rerun for a calmer frame.\n", res.Ticks)
	}
	fmt.Println("")
	return res, nil
}

func printBanner() {
	fmt.Println("")
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║            satlas Snapshot Export            ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Println("║  Renders the loaded taxonomy to PNG or SVG.  ║")
	fmt.Println("║  Press Ctrl+C anytime to cancel.             ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println("")
}
