// Package dto defines the JSON wire format for solve submissions and
// results. internal/solver/model intentionally carries no json tags (it is
// the solver's internal domain model), so this package owns the boundary
// conversion, the same separation internal/common/repository keeps
// between its GORM models and request/response shapes.
package dto

import (
	"fmt"

	apperrors "github.com/tobangado69/vrpsolver/pkg/errors"

	"github.com/tobangado69/vrpsolver/internal/solver/matrix"
	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/objective"
)

// TimeWindow mirrors model.TimeWindow on the wire.
type TimeWindow struct {
	Earliest int64 `json:"earliest"`
	Latest   int64 `json:"latest"`
}

func (w TimeWindow) toModel() model.TimeWindow {
	return model.TimeWindow{Earliest: w.Earliest, Latest: w.Latest}
}

// Place mirrors model.Place.
type Place struct {
	Location int64        `json:"location"`
	Duration int64        `json:"duration"`
	Windows  []TimeWindow `json:"windows,omitempty"`
	Tag      string       `json:"tag,omitempty"`
}

func (p Place) toModel() model.Place {
	windows := make([]model.TimeWindow, len(p.Windows))
	for i, w := range p.Windows {
		windows[i] = w.toModel()
	}
	return model.Place{
		Location: model.Location(p.Location),
		Duration: p.Duration,
		Windows:  windows,
		Tag:      p.Tag,
	}
}

// Task mirrors model.Task. Kind is one of "pickup", "delivery",
// "replacement", "service".
type Task struct {
	Kind   string  `json:"kind"`
	Places []Place `json:"places"`
	Demand []int64 `json:"demand,omitempty"`
	Order  int     `json:"order,omitempty"`
}

func taskKindFromString(s string) (model.TaskKind, error) {
	switch s {
	case "pickup":
		return model.TaskPickup, nil
	case "delivery":
		return model.TaskDelivery, nil
	case "replacement":
		return model.TaskReplacement, nil
	case "service":
		return model.TaskService, nil
	default:
		return 0, fmt.Errorf("unknown task kind %q", s)
	}
}

func (t Task) toModel() (model.Task, error) {
	kind, err := taskKindFromString(t.Kind)
	if err != nil {
		return model.Task{}, err
	}
	places := make([]model.Place, len(t.Places))
	for i, p := range t.Places {
		places[i] = p.toModel()
	}
	order := t.Order
	if order == 0 {
		order = model.UnorderedTask
	}
	return model.Task{
		Kind:   kind,
		Places: places,
		Demand: model.Demand(t.Demand),
		Order:  order,
	}, nil
}

// SkillExpr mirrors model.SkillExpr. Kind is one of "all-of", "one-of",
// "none-of".
type SkillExpr struct {
	Kind   string   `json:"kind"`
	Skills []string `json:"skills"`
}

func (s SkillExpr) toModel() (model.SkillExpr, error) {
	var kind model.SkillKind
	switch s.Kind {
	case "all-of":
		kind = model.SkillAllOf
	case "one-of":
		kind = model.SkillOneOf
	case "none-of":
		kind = model.SkillNoneOf
	default:
		return model.SkillExpr{}, fmt.Errorf("unknown skill expr kind %q", s.Kind)
	}
	return model.SkillExpr{Kind: kind, Skills: s.Skills}, nil
}

// Affinity mirrors model.Affinity.
type Affinity struct {
	Key          string `json:"key"`
	Sequence     int    `json:"sequence,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
}

// Sync mirrors model.Sync.
type Sync struct {
	Key              string `json:"key"`
	Index            int    `json:"index,omitempty"`
	VehiclesRequired int    `json:"vehicles_required"`
	ToleranceSec     int64  `json:"tolerance_sec,omitempty"`
}

// Job mirrors model.Job.
type Job struct {
	ID              string     `json:"id"`
	Tasks           []Task     `json:"tasks"`
	Skills          *SkillExpr `json:"skills,omitempty"`
	Value           float64    `json:"value,omitempty"`
	Group           string     `json:"group,omitempty"`
	Compat          string     `json:"compat,omitempty"`
	Affinity        *Affinity  `json:"affinity,omitempty"`
	Sync            *Sync      `json:"sync,omitempty"`
	SameAssigneeKey string     `json:"same_assignee_key,omitempty"`
}

func (j Job) toModel() (model.Job, error) {
	tasks := make([]model.Task, len(j.Tasks))
	for i, t := range j.Tasks {
		mt, err := t.toModel()
		if err != nil {
			return model.Job{}, fmt.Errorf("job %s: %w", j.ID, err)
		}
		tasks[i] = mt
	}

	out := model.Job{
		ID:              j.ID,
		Tasks:           tasks,
		Value:           j.Value,
		Group:           j.Group,
		Compat:          j.Compat,
		SameAssigneeKey: j.SameAssigneeKey,
	}

	if j.Skills != nil {
		se, err := j.Skills.toModel()
		if err != nil {
			return model.Job{}, fmt.Errorf("job %s: %w", j.ID, err)
		}
		out.Skills = &se
	}
	if j.Affinity != nil {
		out.Affinity = &model.Affinity{
			Key:          j.Affinity.Key,
			Sequence:     j.Affinity.Sequence,
			DurationDays: j.Affinity.DurationDays,
		}
	}
	if j.Sync != nil {
		out.Sync = &model.Sync{
			Key:              j.Sync.Key,
			Index:            j.Sync.Index,
			VehiclesRequired: j.Sync.VehiclesRequired,
			ToleranceSec:     j.Sync.ToleranceSec,
		}
	}

	return out, nil
}

// CostTier mirrors model.CostTier.
type CostTier struct {
	Threshold int64   `json:"threshold"`
	Rate      float64 `json:"rate"`
}

// CostSchedule mirrors model.CostSchedule. Mode is "highest-tier" or
// "cumulative".
type CostSchedule struct {
	Fixed         float64    `json:"fixed"`
	TimeTiers     []CostTier `json:"time_tiers,omitempty"`
	DistanceTiers []CostTier `json:"distance_tiers,omitempty"`
	Mode          string     `json:"mode,omitempty"`
}

func (c CostSchedule) toModel() model.CostSchedule {
	mode := model.CostHighestTier
	if c.Mode == "cumulative" {
		mode = model.CostCumulative
	}
	tt := make([]model.CostTier, len(c.TimeTiers))
	for i, t := range c.TimeTiers {
		tt[i] = model.CostTier{Threshold: t.Threshold, Rate: t.Rate}
	}
	dt := make([]model.CostTier, len(c.DistanceTiers))
	for i, t := range c.DistanceTiers {
		dt[i] = model.CostTier{Threshold: t.Threshold, Rate: t.Rate}
	}
	return model.CostSchedule{
		Fixed:           c.Fixed,
		TimeTiers:       tt,
		DistanceTiers:   dt,
		CalculationMode: mode,
	}
}

// Limits mirrors model.Limits.
type Limits struct {
	MaxDuration         int64 `json:"max_duration,omitempty"`
	MaxDistance         int64 `json:"max_distance,omitempty"`
	MaxActivityDuration int64 `json:"max_activity_duration,omitempty"`
	TourSize            int   `json:"tour_size,omitempty"`
}

func (l Limits) toModel() model.Limits {
	return model.Limits{
		MaxDuration:         l.MaxDuration,
		MaxDistance:         l.MaxDistance,
		MaxActivityDuration: l.MaxActivityDuration,
		TourSize:            l.TourSize,
	}
}

// Break mirrors model.Break. Skip is one of "never",
// "if-no-intersection", "if-arrival-before-end".
type Break struct {
	Required bool       `json:"required"`
	Window   TimeWindow `json:"window"`
	Duration int64      `json:"duration"`
	Location *int64     `json:"location,omitempty"`
	Skip     string     `json:"skip,omitempty"`
}

func (b Break) toModel() model.Break {
	skip := model.BreakSkipNever
	switch b.Skip {
	case "if-no-intersection":
		skip = model.BreakSkipIfNoIntersection
	case "if-arrival-before-end":
		skip = model.BreakSkipIfArrivalBeforeEnd
	}
	var loc *model.Location
	if b.Location != nil {
		l := model.Location(*b.Location)
		loc = &l
	}
	return model.Break{
		Required: b.Required,
		Window:   b.Window.toModel(),
		Duration: b.Duration,
		Location: loc,
		Skip:     skip,
	}
}

// Reload mirrors model.Reload.
type Reload struct {
	Location   int64  `json:"location"`
	Duration   int64  `json:"duration"`
	ResourceID string `json:"resource_id,omitempty"`
	Capacity   int64  `json:"capacity,omitempty"`
}

func (r Reload) toModel() model.Reload {
	return model.Reload{
		Location:   model.Location(r.Location),
		Duration:   r.Duration,
		ResourceID: r.ResourceID,
		Capacity:   r.Capacity,
	}
}

// ShiftEnd mirrors model.ShiftEnd.
type ShiftEnd struct {
	Location    int64 `json:"location"`
	Earliest    int64 `json:"earliest,omitempty"`
	Latest      int64 `json:"latest,omitempty"`
	HasEarliest bool  `json:"has_earliest,omitempty"`
}

// Shift mirrors model.Shift.
type Shift struct {
	StartLocation  int64     `json:"start_location"`
	StartEarliest  int64     `json:"start_earliest"`
	StartLatest    int64     `json:"start_latest,omitempty"`
	HasStartLatest bool      `json:"has_start_latest,omitempty"`
	End            *ShiftEnd `json:"end,omitempty"`
	Breaks         []Break   `json:"breaks,omitempty"`
	Reloads        []Reload  `json:"reloads,omitempty"`
}

func (s Shift) toModel() model.Shift {
	var end *model.ShiftEnd
	if s.End != nil {
		end = &model.ShiftEnd{
			Location:    model.Location(s.End.Location),
			Earliest:    s.End.Earliest,
			Latest:      s.End.Latest,
			HasEarliest: s.End.HasEarliest,
		}
	}
	breaks := make([]model.Break, len(s.Breaks))
	for i, b := range s.Breaks {
		breaks[i] = b.toModel()
	}
	reloads := make([]model.Reload, len(s.Reloads))
	for i, r := range s.Reloads {
		reloads[i] = r.toModel()
	}
	return model.Shift{
		StartLocation:  model.Location(s.StartLocation),
		StartEarliest:  s.StartEarliest,
		StartLatest:    s.StartLatest,
		HasStartLatest: s.HasStartLatest,
		End:            end,
		Breaks:         breaks,
		Reloads:        reloads,
	}
}

// VehicleType mirrors model.VehicleType.
type VehicleType struct {
	TypeID        string       `json:"type_id"`
	VehicleIDs    []string     `json:"vehicle_ids"`
	Profile       string       `json:"profile"`
	ScaleDuration float64      `json:"scale_duration,omitempty"`
	Cost          CostSchedule `json:"cost"`
	Shifts        []Shift      `json:"shifts"`
	Capacity      []int64      `json:"capacity,omitempty"`
	Skills        []string     `json:"skills,omitempty"`
	Limits        Limits       `json:"limits,omitempty"`
}

func (v VehicleType) toModel() model.VehicleType {
	shifts := make([]model.Shift, len(v.Shifts))
	for i, s := range v.Shifts {
		shifts[i] = s.toModel()
	}
	skills := make(map[string]struct{}, len(v.Skills))
	for _, s := range v.Skills {
		skills[s] = struct{}{}
	}
	return model.VehicleType{
		TypeID:        v.TypeID,
		VehicleIDs:    v.VehicleIDs,
		Profile:       v.Profile,
		ScaleDuration: v.ScaleDuration,
		Cost:          v.Cost.toModel(),
		Shifts:        shifts,
		Capacity:      model.Demand(v.Capacity),
		Skills:        skills,
		Limits:        v.Limits.toModel(),
	}
}

// Matrix is one named routing profile's distance/duration table, in
// row-major location order.
type Matrix struct {
	Profile   string    `json:"profile"`
	Distances [][]int64 `json:"distances"`
	Durations [][]int64 `json:"durations"`
	Scale     float64   `json:"scale,omitempty"`
}

// Problem is the wire format for a solve submission.
type Problem struct {
	Name         string        `json:"name"`
	VehicleTypes []VehicleType `json:"vehicle_types"`
	Jobs         []Job         `json:"jobs"`
	Dimensions   int           `json:"dimensions"`
	Matrices     []Matrix      `json:"matrices"`
	Objectives   []string      `json:"objectives"`
}

// ToModel converts the wire Problem into the solver's domain model, or
// returns a validation AppError describing the first structural issue.
func (p Problem) ToModel() (*model.Problem, error) {
	vts := make([]model.VehicleType, len(p.VehicleTypes))
	for i, v := range p.VehicleTypes {
		vts[i] = v.toModel()
	}
	jobs := make([]model.Job, len(p.Jobs))
	for i, j := range p.Jobs {
		mj, err := j.toModel()
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		jobs[i] = mj
	}
	return &model.Problem{
		VehicleTypes: vts,
		Jobs:         jobs,
		Dimensions:   p.Dimensions,
	}, nil
}

// ToMatrixProvider loads every declared profile into a fresh
// matrix.StaticProvider.
func (p Problem) ToMatrixProvider() (*matrix.StaticProvider, error) {
	provider := matrix.NewStaticProvider()
	for _, m := range p.Matrices {
		scale := m.Scale
		if scale == 0 {
			scale = 1
		}
		provider.LoadProfile(m.Profile, m.Distances, m.Durations, scale)
	}
	return provider, nil
}

// ToObjectiveSpec resolves the declared objective names into a scoring
// spec, in priority order.
func (p Problem) ToObjectiveSpec() (objective.Spec, error) {
	names := p.Objectives
	if len(names) == 0 {
		names = []string{string(objective.MinimizeUnassigned), string(objective.MinimizeCost)}
	}
	objs := make([]objective.Objective, len(names))
	for i, n := range names {
		o := objective.Default(objective.Name(n))
		if o == nil {
			return objective.Spec{}, fmt.Errorf("unknown objective %q", n)
		}
		objs[i] = o
	}
	return objective.Spec{Objectives: objs}, nil
}
