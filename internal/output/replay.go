package output

import (
	"io"
)

// Replay reads every event from r (a binary scan log), filtering per
// showClosed/banners, and feeds each one through w -- the mechanism
// behind `fi6s read`.
func Replay(r io.Reader, w *Writer, showClosed, banners bool) error {
	rd, err := NewReader(r)
	if err != nil {
		return err
	}
	rd.ShowClosed = showClosed
	rd.Banners = banners

	for {
		ev, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case ev.Status != nil:
			if err := w.Status(*ev.Status); err != nil {
				return err
			}
		case ev.Banner != nil:
			if err := w.Banner(*ev.Banner); err != nil {
				return err
			}
		}
	}
}
