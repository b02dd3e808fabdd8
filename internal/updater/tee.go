package updater

import "go.uber.org/multierr"

type tee struct {
	primary  Renderer
	mirrors  []Renderer
	onMirror func(source string, err error)
}

// Tee returns a Renderer that writes to primary and then to every mirror.
// Only the primary decides whether the points were applied; mirror failures
// are combined and passed to onMirror (which may be nil).
func Tee(onMirror func(source string, err error), primary Renderer, mirrors ...Renderer) Renderer {
	t := &tee{primary: primary, onMirror: onMirror}
	for _, m := range mirrors {
		if m != nil {
			t.mirrors = append(t.mirrors, m)
		}
	}
	return t
}

func (t *tee) SetSeriesData(source string, pts []TimePoint) error {
	if err := t.primary.SetSeriesData(source, pts); err != nil {
		return err
	}
	var err error
	for _, m := range t.mirrors {
		err = multierr.Append(err, m.SetSeriesData(source, pts))
	}
	t.report(source, err)
	return nil
}

func (t *tee) AppendSeriesData(source string, pts []TimePoint) error {
	if err := t.primary.AppendSeriesData(source, pts); err != nil {
		return err
	}
	var err error
	for _, m := range t.mirrors {
		err = multierr.Append(err, m.AppendSeriesData(source, pts))
	}
	t.report(source, err)
	return nil
}

func (t *tee) report(source string, err error) {
	if err != nil && t.onMirror != nil {
		t.onMirror(source, err)
	}
}
