package mapengine

import (
	"fmt"

	"growgent/internal/types"
)

// SendFunc delivers one op to the browser. It must not block indefinitely.
type SendFunc func(Op) error

// Remote is an Engine whose map lives in a browser. It keeps a local mirror
// so that id checks and readiness are answered without a round trip, and
// forwards each accepted mutation through send.
type Remote struct {
	mirror *Recorder
	send   SendFunc
}

var _ Engine = (*Remote)(nil)

// NewRemote creates a Remote that starts not ready.
func NewRemote(send SendFunc) *Remote {
	return &Remote{mirror: NewRecorder(), send: send}
}

// MarkReady is called when the browser reports its map loaded. The browser
// starts from an empty style, so the mirror is reset.
func (r *Remote) MarkReady() {
	r.mirror.Clear()
	r.mirror.SetReady(true)
}

// MarkNotReady is called when the browser reports its map is reloading.
func (r *Remote) MarkNotReady() {
	r.mirror.SetReady(false)
}

// LayerIDs reports the mirrored layer stack, bottom to top.
func (r *Remote) LayerIDs() []string { return r.mirror.LayerIDs() }

func (r *Remote) Ready() bool              { return r.mirror.Ready() }
func (r *Remote) HasSource(id string) bool { return r.mirror.HasSource(id) }
func (r *Remote) HasLayer(id string) bool  { return r.mirror.HasLayer(id) }

func (r *Remote) AddSource(id string, src Source) error {
	if err := r.mirror.AddSource(id, src); err != nil {
		return err
	}
	return r.forward(Op{Kind: OpAddSource, ID: id, Source: &src})
}

func (r *Remote) RemoveSource(id string) error {
	if err := r.mirror.RemoveSource(id); err != nil {
		return err
	}
	return r.forward(Op{Kind: OpRemoveSource, ID: id})
}

func (r *Remote) AddLayer(layer Layer) error {
	if err := r.mirror.AddLayer(layer); err != nil {
		return err
	}
	return r.forward(Op{Kind: OpAddLayer, ID: layer.ID, Layer: &layer})
}

func (r *Remote) RemoveLayer(id string) error {
	if err := r.mirror.RemoveLayer(id); err != nil {
		return err
	}
	return r.forward(Op{Kind: OpRemoveLayer, ID: id})
}

func (r *Remote) AddMarker(id string, at types.Position) error {
	if err := r.mirror.AddMarker(id, at); err != nil {
		return err
	}
	return r.forward(Op{Kind: OpAddMarker, ID: id, Position: &at})
}

func (r *Remote) RemoveMarker(id string) error {
	if err := r.mirror.RemoveMarker(id); err != nil {
		return err
	}
	return r.forward(Op{Kind: OpRemoveMarker, ID: id})
}

func (r *Remote) forward(op Op) error {
	if err := r.send(op); err != nil {
		return fmt.Errorf("sending %s %q: %w", op.Kind, op.ID, err)
	}
	return nil
}
