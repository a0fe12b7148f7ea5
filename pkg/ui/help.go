package ui

import "github.com/charmbracelet/glamour"

const helpMarkdown = `# satlas

An interactive map of your site taxonomy. Nodes are pages and sections,
sized by traffic and colored by health. Links are parent relations and
cross-references.

## Mouse

* **Move** highlights the node under the pointer
* **Click** selects (shift-click adds to the selection)
* **Drag a node** repositions it; the neighborhood re-settles
* **Drag the background** pans
* **Scroll** zooms around the pointer

## Keys

* ` + "`/`" + ` search, Enter jumps to the best match
* ` + "`e`" + ` expand neighbors of the selection
* ` + "`y`" + ` copy the selected node URL
* ` + "`p`" + ` toggle performance mode
* ` + "`r`" + ` reheat the layout
* ` + "`arrows`" + ` pan, ` + "`+`/`-`" + ` zoom
* ` + "`esc`" + ` clear selection
* ` + "`?`" + ` this help, ` + "`q`" + ` quit

Zoomed out far enough, nearby nodes collapse into cluster bubbles; zoom in
to expand them again.
`

// renderHelp renders the help overlay for the given terminal width. Falls
// back to the raw markdown when the terminal renderer cannot be built.
func renderHelp(width int) string {
	wrap := width - 10
	if wrap > 72 {
		wrap = 72
	}
	if wrap < 24 {
		wrap = 24
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
