package display

import "github.com/Hirshol/equill-core-apps-sub000/internal/wire"

// Region is a rectangle in panel coordinates.
type Region struct {
	X, Y, Width, Height uint32
}

func (r Region) ints() []uint32 {
	return []uint32{r.X, r.Y, r.Width, r.Height}
}

// LoadDocument asks the display server to open the document at path and
// show startPage.
func LoadDocument(path string, startPage uint32, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpLoadDocument, opts, 0, []uint32{startPage}, path)
}

// InsertPage inserts a page built from template before page.
func InsertPage(page uint32, template string, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpInsertPage, opts, 0, []uint32{page}, template)
}

// DeletePage removes page from the loaded document.
func DeletePage(page uint32, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpDeletePage, opts, 0, []uint32{page})
}

// UpdateRegion redraws part of page.
func UpdateRegion(page uint32, r Region, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpUpdateRegion, opts, 0, append([]uint32{page}, r.ints()...))
}

// CreateOverlay shows image over the page at r under the given overlay id.
func CreateOverlay(overlay uint32, r Region, image string, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpCreateOverlay, opts, 0, append([]uint32{overlay}, r.ints()...), image)
}

// ModifyOverlay replaces the image of an existing overlay.
func ModifyOverlay(overlay uint32, image string, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpModifyOverlay, opts, 0, []uint32{overlay}, image)
}

// CloseOverlay removes an overlay.
func CloseOverlay(overlay uint32, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpCloseOverlay, opts, 0, []uint32{overlay})
}

// ConfigChange sets one display-server setting.
func ConfigChange(key, value string) wire.Message {
	return wire.NewMessage(wire.OpConfigChange, 0, 0, nil, key, value)
}

// EraseStrokes clears captured strokes on page.
func EraseStrokes(page uint32, opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpEraseStrokes, opts, 0, []uint32{page})
}

// Doze lowers the panel's refresh clock.
func Doze() wire.Message {
	return wire.NewMessage(wire.OpDoze, 0, 0, nil)
}

// Sleep asks the display server to prepare for suspend. It answers with a
// sleep_ack event.
func Sleep() wire.Message {
	return wire.NewMessage(wire.OpSleep, 0, 0, nil)
}

// BlankScreen clears the panel before power-off.
func BlankScreen(opts wire.Options) wire.Message {
	return wire.NewMessage(wire.OpBlankScreen, opts, 0, nil)
}

// Wake restores full operation after Doze or Sleep.
func Wake() wire.Message {
	return wire.NewMessage(wire.OpWake, 0, 0, nil)
}
