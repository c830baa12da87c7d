package ui

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"CollabBoard/internal/board"
	"CollabBoard/internal/export"
	"CollabBoard/internal/render"
)

const (
	formatPNG       = "PNG image"
	formatPDF       = "PDF (image)"
	formatVectorPDF = "PDF (vector)"
	formatView      = "Current view (PNG)"
)

// writeExport renders the session's board to w in the given format.
func writeExport(w io.Writer, s *board.Session, format string) error {
	opts := []render.Option{render.WithTheme(s.Renderer.Theme())}
	switch format {
	case formatView:
		// The last frame as drawn, so camera, grid and peer cursors are kept.
		img := s.Renderer.Snapshot()
		if img == nil {
			return export.ErrEmptyBoard
		}
		return export.PNG(w, img)
	case formatVectorPDF:
		return export.WriteVectorPDF(w, s.Store, render.NewRoughGenerator(uint64(time.Now().UnixNano())))
	case formatPDF:
		img, err := export.Board(s.Store, opts...)
		if err != nil {
			return err
		}
		return export.WritePDF(w, img)
	default:
		img, err := export.Board(s.Store, opts...)
		if err != nil {
			return err
		}
		return export.PNG(w, img)
	}
}

func exportExtension(format string) string {
	if format == formatPNG || format == formatView {
		return ".png"
	}
	return ".pdf"
}

// ShowExportDialog asks for a format and a file, then writes the board.
func ShowExportDialog(win fyne.Window, s *board.Session, status func(string)) {
	formats := widget.NewRadioGroup([]string{formatPNG, formatView, formatPDF, formatVectorPDF}, nil)
	formats.SetSelected(formatPNG)
	formats.Required = true

	dialog.ShowCustomConfirm("Export board", "Choose file", "Cancel", formats, func(ok bool) {
		if !ok {
			return
		}
		format := formats.Selected
		save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, win)
				return
			}
			if writer == nil {
				return
			}
			defer func() {
				if err := writer.Close(); err != nil {
					log.Printf("[EXPORT] Error closing %s: %v", writer.URI(), err)
				}
			}()
			if err := writeExport(writer, s, format); err != nil {
				log.Printf("[EXPORT] Export to %s failed: %v", writer.URI(), err)
				if errors.Is(err, export.ErrEmptyBoard) {
					status("Nothing to export yet")
					return
				}
				dialog.ShowError(err, win)
				return
			}
			status(fmt.Sprintf("Exported to %s", writer.URI().Name()))
		}, win)
		save.SetFileName("board" + exportExtension(format))
		save.SetFilter(storage.NewExtensionFileFilter([]string{exportExtension(format)}))
		save.Show()
	}, win)
}
