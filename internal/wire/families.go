package wire

// Default magic numbers. Deployments may override them through configuration.
const (
	DefaultTabletMagic uint32 = 0x45514C31 // "EQL1"
	DefaultCameraMagic uint32 = 0x43414D31 // "CAM1"
)

// Tablet op-codes: document, page, overlay and power commands for the display server.
const (
	OpLoadDocument  uint32 = 100
	OpInsertPage    uint32 = 101
	OpDeletePage    uint32 = 102
	OpUpdateRegion  uint32 = 103
	OpCreateOverlay uint32 = 104
	OpModifyOverlay uint32 = 105
	OpCloseOverlay  uint32 = 106
	OpConfigChange  uint32 = 107
	OpEraseStrokes  uint32 = 108
	OpDoze          uint32 = 109
	OpSleep         uint32 = 110
	OpBlankScreen   uint32 = 111
	OpWake          uint32 = 112
)

// Tablet option bits.
const (
	// TabletFlash requests a full flashing refresh of the panel.
	TabletFlash Options = 1 << iota
	// TabletFullRefresh redraws the whole page instead of the damaged region.
	TabletFullRefresh
	// TabletNoRender updates state without drawing.
	TabletNoRender
	// TabletKeepStrokes preserves captured strokes across the command.
	TabletKeepStrokes
	// TabletNotify asks the display server to send a completion event
	// carrying the frame's request id.
	TabletNotify
)

// Camera op-codes.
const (
	OpCameraStart         uint32 = 1
	OpCameraStop          uint32 = 2
	OpCameraCapture       uint32 = 3
	OpCameraSetResolution uint32 = 4
)

// Camera option bits.
const (
	CameraPreview Options = 1 << iota
	CameraAutofocus
	CameraTorch
)

var tabletOptions = NewVocabulary(
	Flag{Name: "flash", Bit: TabletFlash},
	Flag{Name: "full_refresh", Bit: TabletFullRefresh},
	Flag{Name: "no_render", Bit: TabletNoRender},
	Flag{Name: "keep_strokes", Bit: TabletKeepStrokes},
	Flag{Name: "notify", Bit: TabletNotify},
)

var cameraOptions = NewVocabulary(
	Flag{Name: "preview", Bit: CameraPreview},
	Flag{Name: "autofocus", Bit: CameraAutofocus},
	Flag{Name: "torch", Bit: CameraTorch},
)

// TabletFamily returns the display-server command family.
func TabletFamily(magic uint32) Family {
	return Family{
		Name:    "tablet",
		Magic:   magic,
		Options: tabletOptions,
		OpNames: map[uint32]string{
			OpLoadDocument:  "load_document",
			OpInsertPage:    "insert_page",
			OpDeletePage:    "delete_page",
			OpUpdateRegion:  "update_region",
			OpCreateOverlay: "create_overlay",
			OpModifyOverlay: "modify_overlay",
			OpCloseOverlay:  "close_overlay",
			OpConfigChange:  "config_change",
			OpEraseStrokes:  "erase_strokes",
			OpDoze:          "doze",
			OpSleep:         "sleep",
			OpBlankScreen:   "blank_screen",
			OpWake:          "wake",
		},
	}
}

// CameraFamily returns the camera-server command family.
func CameraFamily(magic uint32) Family {
	return Family{
		Name:    "camera",
		Magic:   magic,
		Options: cameraOptions,
		OpNames: map[uint32]string{
			OpCameraStart:         "start",
			OpCameraStop:          "stop",
			OpCameraCapture:       "capture",
			OpCameraSetResolution: "set_resolution",
		},
	}
}
