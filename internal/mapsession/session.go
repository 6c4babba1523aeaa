package mapsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"growgent/internal/backend"
	"growgent/internal/drawing"
	"growgent/internal/layers"
	"growgent/internal/mapengine"
	"growgent/internal/types"
	"growgent/internal/zones"
)

// FieldSource lists the farm's fields.
type FieldSource interface {
	ListFields(ctx context.Context, q backend.FieldQuery) (*types.FieldList, error)
}

// ZoneService is the subset of zones.Service used by a session.
type ZoneService interface {
	List(ctx context.Context, f types.ZoneFilter) ([]types.RiskZone, error)
	Get(ctx context.Context, id string) (*types.RiskZone, error)
	Create(ctx context.Context, in zones.CreateZoneInput) (*types.RiskZone, error)
	Update(ctx context.Context, id string, patch types.ZonePatch) (*types.RiskZone, bool, error)
	Delete(ctx context.Context, id string, confirmed bool) (bool, error)
}

var _ ZoneService = (*zones.Service)(nil)

// Options configures a Session.
type Options struct {
	FarmID  string
	Palette layers.Palette
	Tiles   layers.TileSources
	Layers  layers.LayerState
	// OutboxSize bounds the messages queued for the writer.
	OutboxSize int
}

// errPeerClosed ends Run when the browser goes away.
var errPeerClosed = errors.New("mapsession: peer closed")

// Session is the state of one connected map. All state is owned by the loop
// goroutine started by Run.
type Session struct {
	fields FieldSource
	zones  ZoneService
	opts   Options
	logger *slog.Logger

	out        chan Message
	ctx        context.Context
	remote     *mapengine.Remote
	compositor *layers.Compositor
	drawing    *drawing.Session
	selector   layers.FieldSelector

	layerState      layers.LayerState
	filter          types.ZoneFilter
	fieldList       []types.Field
	allZones        []types.RiskZone
	selectedFieldID string
	pending         *types.Feature
}

// New creates a session. Call Run to serve it.
func New(fields FieldSource, zoneSvc ZoneService, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Palette == nil {
		opts.Palette = layers.DefaultPalette()
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 256
	}
	s := &Session{
		fields:     fields,
		zones:      zoneSvc,
		opts:       opts,
		logger:     logger,
		out:        make(chan Message, opts.OutboxSize),
		layerState: opts.Layers,
	}
	s.remote = mapengine.NewRemote(s.sendOp)
	s.compositor = layers.NewCompositor(opts.Palette, logger)
	s.drawing = drawing.NewSession(s.remote, s.polygonComplete, logger)
	return s
}

// Run serves the session until the transport fails or ctx is cancelled. A
// reader goroutine feeds the event loop and a writer goroutine drains the
// outbox; the transport is closed before Run returns.
func (s *Session) Run(ctx context.Context, t Transport) error {
	g, ctx := errgroup.WithContext(ctx)
	in := make(chan Message)

	g.Go(func() error {
		for {
			msg, err := t.Read()
			if err != nil {
				return errPeerClosed
			}
			select {
			case in <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		return s.loop(ctx, in)
	})
	g.Go(func() error {
		for {
			select {
			case msg := <-s.out:
				if err := t.Write(msg); err != nil {
					return fmt.Errorf("writing %s message: %w", msg.Type, err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return t.Close()
	})

	err := g.Wait()
	if errors.Is(err, errPeerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) loop(ctx context.Context, in <-chan Message) error {
	s.ctx = ctx
	s.bootstrap(ctx)
	for {
		select {
		case msg := <-in:
			if err := s.handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.sendError(msg.ID, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// bootstrap loads fields and zones concurrently. A failure of either is
// reported to the browser and the map is drawn with what loaded.
func (s *Session) bootstrap(ctx context.Context) {
	var (
		fieldList []types.Field
		zoneList  []types.RiskZone
		fieldErr  error
		zoneErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.fields == nil {
			return nil
		}
		list, err := s.fields.ListFields(gctx, backend.FieldQuery{FarmID: s.opts.FarmID, PageSize: 100})
		if err != nil {
			fieldErr = err
			return nil
		}
		fieldList = list.Fields
		return nil
	})
	g.Go(func() error {
		list, err := s.zones.List(gctx, types.ZoneFilter{})
		if err != nil {
			zoneErr = err
			return nil
		}
		zoneList = list
		return nil
	})
	_ = g.Wait()

	if fieldErr != nil {
		s.logger.WarnContext(ctx, "failed to load fields", "farm_id", s.opts.FarmID, "error", fieldErr)
		s.sendError("", fieldErr)
	}
	if zoneErr != nil {
		s.logger.ErrorContext(ctx, "failed to load zones", "error", zoneErr)
		s.sendError("", zoneErr)
	}
	s.fieldList = fieldList
	s.allZones = zoneList
	s.sendZones()
}

func (s *Session) handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case EventReady:
		s.remote.MarkReady()
		s.compositor.Reset()
		s.render()
		return nil

	case eventMalformed:
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed message", nil)

	case EventNotReady:
		s.remote.MarkNotReady()
		return nil

	case EventClick:
		var ev layers.ClickEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		if s.drawing.State() == drawing.Collecting {
			s.drawing.AddPoint(ev.LngLat.Lng(), ev.LngLat.Lat())
			return nil
		}
		if id, ok := s.selector.HandleClick(ev); ok {
			s.selectField(id)
		}
		return nil

	case EventDoubleClick:
		s.drawing.Complete()
		return nil

	case EventToggleLayer:
		var d ToggleLayerData
		if err := decode(msg, &d); err != nil {
			return err
		}
		var err error
		if d.On != nil {
			err = s.layerState.Set(d.Layer, *d.On)
		} else {
			_, err = s.layerState.Flip(d.Layer)
		}
		if err != nil {
			return err
		}
		s.render()
		return nil

	case EventSetDrawing:
		var d SetDrawingData
		if err := decode(msg, &d); err != nil {
			return err
		}
		if d.On {
			s.pending = nil
		}
		s.drawing.SetDrawing(d.On)
		return nil

	case EventSetFilter:
		var f types.ZoneFilter
		if err := decode(msg, &f); err != nil {
			return err
		}
		s.filter = f
		s.render()
		s.sendZones()
		return nil

	case EventSelectField:
		var d SelectFieldData
		if err := decode(msg, &d); err != nil {
			return err
		}
		s.selectField(d.FieldID)
		return nil

	case EventCreateZone:
		var d CreateZoneData
		if err := decode(msg, &d); err != nil {
			return err
		}
		if d.Geometry == nil && s.pending != nil {
			d.Geometry = s.pending
		}
		if _, err := s.zones.Create(ctx, d); err != nil {
			return err
		}
		s.pending = nil
		return s.refreshZones(ctx)

	case EventUpdateZone:
		var d UpdateZoneData
		if err := decode(msg, &d); err != nil {
			return err
		}
		if _, _, err := s.zones.Update(ctx, d.ID, d.Patch); err != nil {
			return err
		}
		return s.refreshZones(ctx)

	case EventDeleteZone:
		var d DeleteZoneData
		if err := decode(msg, &d); err != nil {
			return err
		}
		if _, err := s.zones.Delete(ctx, d.ID, d.Confirmed); err != nil {
			return err
		}
		return s.refreshZones(ctx)

	case EventEditZone:
		var d EditZoneData
		if err := decode(msg, &d); err != nil {
			return err
		}
		z, err := s.zones.Get(ctx, d.ID)
		if err != nil {
			return err
		}
		s.send(MsgZone, msg.ID, ZoneData{Zone: *z})
		return nil
	}

	return types.NewAppError(types.ErrCodeValidationUnknownEvent, fmt.Sprintf("unknown event %q", msg.Type), nil)
}

func (s *Session) selectField(id string) {
	s.selectedFieldID = id
	s.render()
	s.send(MsgFieldSelected, "", FieldSelectedData{FieldID: id})
}

func (s *Session) refreshZones(ctx context.Context) error {
	list, err := s.zones.List(ctx, types.ZoneFilter{})
	if err != nil {
		return err
	}
	s.allZones = list
	s.render()
	s.sendZones()
	return nil
}

func (s *Session) render() {
	in := layers.Inputs{
		Layers:          s.layerState,
		Fields:          s.fieldList,
		SelectedFieldID: s.selectedFieldID,
		Zones:           zones.Filter(s.allZones, s.filter),
		Tiles:           s.opts.Tiles,
	}
	if _, err := s.compositor.Render(s.remote, in); err != nil {
		s.logger.Error("failed to render map layers", "error", err)
		s.sendError("", err)
	}
}

func (s *Session) polygonComplete(f types.Feature) {
	s.pending = &f
	s.send(MsgPolygonComplete, "", PolygonCompleteData{Feature: f})
}

func (s *Session) sendZones() {
	visible := zones.Filter(s.allZones, s.filter)
	s.send(MsgZones, "", ZonesData{Zones: visible, Filter: s.filter, Total: len(s.allZones)})
}

// sendOp is the Remote's transport. It blocks while the outbox is full.
func (s *Session) sendOp(op mapengine.Op) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}
	return s.enqueue(Message{Type: MsgOp, Data: data})
}

func (s *Session) send(kind, id string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode message", "type", kind, "error", err)
		return
	}
	if err := s.enqueue(Message{Type: kind, ID: id, Data: data}); err != nil {
		s.logger.Debug("dropping message for closed session", "type", kind)
	}
}

func (s *Session) sendError(id string, err error) {
	code := types.ErrCodeInternalUnexpected
	message := "internal error"
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}
	s.send(MsgError, id, ErrorData{Code: code, Message: message})
}

func (s *Session) enqueue(msg Message) error {
	select {
	case s.out <- msg:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func decode(msg Message, v any) error {
	if len(msg.Data) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, fmt.Sprintf("%s event has no data", msg.Type), nil)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, fmt.Sprintf("invalid %s data", msg.Type), err)
	}
	return nil
}
