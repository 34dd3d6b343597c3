package constraint

import (
	"strconv"

	"github.com/tobangado69/vrpsolver/internal/solver/model"
	"github.com/tobangado69/vrpsolver/internal/solver/schedule"
)

// baseHard gives every hard built-in a trivial AcceptRoute/AcceptSolution
// so each constraint only overrides what it actually needs.
type baseHard struct{ id string }

func (b baseHard) ID() string { return b.id }
func (b baseHard) Kind() Kind { return Hard }
func (b baseHard) EvaluateRoute(*schedule.Route) *Violation { return nil }
func (b baseHard) MergeStates(_, right interface{}) interface{} { return right }
func (b baseHard) SoftCost(Solution, InsertionContext) float64 { return 0 }
func (b baseHard) AcceptRoute(*schedule.Route) {}
func (b baseHard) AcceptSolution(Solution) {}

// TimeConstraint rejects placements whose service start falls outside the
// probed place's time windows or the shift's latest end.
type TimeConstraint struct{ baseHard }

func NewTimeConstraint() *TimeConstraint { return &TimeConstraint{baseHard{"time"}} }

func (c *TimeConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	act := ctx.NewActivity
	if act.Kind != schedule.JobPlace {
		return nil
	}
	task := ctx.Job.Tasks[ctx.TaskIndex]
	place := task.Places[ctx.PlaceIndex]
	if len(place.Windows) == 0 {
		return nil
	}
	if !place.FeasibleAt(act.ServiceStart) {
		return &Violation{Code: "TIME_WINDOW"}
	}
	return nil
}

// CapacityConstraint rejects placements that push the capacity curve out
// of [0, capacity] for any component.
type CapacityConstraint struct {
	baseHard
	Capacity model.Demand
}

func NewCapacityConstraint(capacity model.Demand) *CapacityConstraint {
	return &CapacityConstraint{baseHard{"capacity"}, capacity}
}

func (c *CapacityConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	load := ctx.NewActivity.LoadAfter
	if !load.LessEq(c.Capacity) {
		return &Violation{Code: "CAPACITY"}
	}
	for _, v := range load {
		if v < 0 {
			return &Violation{Code: "CAPACITY"}
		}
	}
	return nil
}

// SkillsConstraint rejects placements where the job's skill expression
// does not hold against the vehicle's skill set.
type SkillsConstraint struct {
	baseHard
	VehicleSkills map[string]struct{}
}

func NewSkillsConstraint(vehicleSkills map[string]struct{}) *SkillsConstraint {
	return &SkillsConstraint{baseHard{"skills"}, vehicleSkills}
}

func (c *SkillsConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	if ctx.Job.Skills == nil {
		return nil
	}
	if !ctx.Job.Skills.Evaluate(c.VehicleSkills) {
		return &Violation{Code: "SKILLS"}
	}
	return nil
}

// LimitsConstraint enforces a vehicle type's maxDuration/maxDistance/
// maxActivityDuration/tourSize.
type LimitsConstraint struct {
	baseHard
	Limits model.Limits
}

func NewLimitsConstraint(limits model.Limits) *LimitsConstraint {
	return &LimitsConstraint{baseHard{"limits"}, limits}
}

func (c *LimitsConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	route := ctx.Route
	projectedDuration := route.TotalDuration()
	projectedDistance := route.TotalDistance()
	if ctx.Position < len(route.Activities) {
		projectedDuration = route.Activities[len(route.Activities)-1].DurationFromDepot
		projectedDistance = route.Activities[len(route.Activities)-1].DistanceFromDepot
	}
	if c.Limits.MaxDuration > 0 && projectedDuration > c.Limits.MaxDuration {
		return &Violation{Code: "MAX_DURATION"}
	}
	if c.Limits.MaxDistance > 0 && projectedDistance > c.Limits.MaxDistance {
		return &Violation{Code: "MAX_DISTANCE"}
	}
	if c.Limits.MaxActivityDuration > 0 && ctx.NewActivity.Duration > c.Limits.MaxActivityDuration {
		return &Violation{Code: "MAX_ACTIVITY_DURATION"}
	}
	if c.Limits.TourSize > 0 && len(route.Activities)+1 > c.Limits.TourSize {
		return &Violation{Code: "TOUR_SIZE"}
	}
	return nil
}

// GroupConstraint rejects placing a job into a route other than the one
// already hosting its group-mates.
type GroupConstraint struct{ baseHard }

func NewGroupConstraint() *GroupConstraint { return &GroupConstraint{baseHard{"group"}} }

func (c *GroupConstraint) EvaluateActivity(sol Solution, ctx InsertionContext) *Violation {
	if ctx.Job.Group == "" {
		return nil
	}
	for _, r := range sol.Routes() {
		if r.VehicleID == ctx.Route.VehicleID {
			continue
		}
		for _, a := range r.Activities {
			if a.Kind != schedule.JobPlace {
				continue
			}
			other, ok := sol.JobByID(a.JobID)
			if ok && other.Group == ctx.Job.Group {
				return &Violation{Code: "GROUP"}
			}
		}
	}
	return nil
}

// CompatibilityConstraint rejects placing a job into a route already
// hosting a job of a different, non-empty compatibility class.
type CompatibilityConstraint struct{ baseHard }

func NewCompatibilityConstraint() *CompatibilityConstraint {
	return &CompatibilityConstraint{baseHard{"compatibility"}}
}

func (c *CompatibilityConstraint) EvaluateActivity(sol Solution, ctx InsertionContext) *Violation {
	if ctx.Job.Compat == "" {
		return nil
	}
	for _, a := range ctx.Route.Activities {
		if a.Kind != schedule.JobPlace {
			continue
		}
		other, ok := sol.JobByID(a.JobID)
		if ok && other.Compat != "" && other.Compat != ctx.Job.Compat {
			return &Violation{Code: "COMPATIBILITY"}
		}
	}
	return nil
}

// PickupDeliveryConstraint enforces that within a route, a job's pickup
// tasks always precede its delivery tasks.
type PickupDeliveryConstraint struct{ baseHard }

func NewPickupDeliveryConstraint() *PickupDeliveryConstraint {
	return &PickupDeliveryConstraint{baseHard{"pickup_delivery"}}
}

func (c *PickupDeliveryConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	if ctx.NewActivity.Kind != schedule.JobPlace {
		return nil
	}
	task := ctx.Job.Tasks[ctx.TaskIndex]
	if task.Kind != TaskDeliveryKind {
		return nil
	}
	for i, a := range ctx.Route.Activities {
		if i >= ctx.Position {
			break
		}
		if a.Kind == schedule.JobPlace && a.JobID == ctx.Job.ID {
			return nil // a pickup (or earlier delivery) of this job already precedes
		}
	}
	for _, t := range ctx.Job.Tasks {
		if t.Kind == TaskPickupKind {
			return &Violation{Code: "PICKUP_DELIVERY_ORDER"}
		}
	}
	return nil
}

// These local aliases name model's two pickup/delivery enum values for
// the hot path above.
const (
	TaskPickupKind = model.TaskPickup
	TaskDeliveryKind = model.TaskDelivery
)

// SameAssigneeConstraint rejects placing a job onto a vehicle other than
// the one already hosting its same_assignee_key peers, across shifts.
type SameAssigneeConstraint struct{ baseHard }

func NewSameAssigneeConstraint() *SameAssigneeConstraint {
	return &SameAssigneeConstraint{baseHard{"same_assignee"}}
}

func (c *SameAssigneeConstraint) EvaluateActivity(sol Solution, ctx InsertionContext) *Violation {
	if ctx.Job.SameAssigneeKey == "" {
		return nil
	}
	for _, r := range sol.Routes() {
		for _, a := range r.Activities {
			if a.Kind != schedule.JobPlace {
				continue
			}
			other, ok := sol.JobByID(a.JobID)
			if ok && other.SameAssigneeKey == ctx.Job.SameAssigneeKey && r.VehicleID != ctx.Route.VehicleID {
				return &Violation{Code: "SAME_ASSIGNEE"}
			}
		}
	}
	return nil
}

// AffinityConstraint rejects placing a job onto a vehicle other than the
// one hosting its affinity peers, and rejects a placement that violates
// the sequence partial order across that vehicle's shifts.
type AffinityConstraint struct{ baseHard }

func NewAffinityConstraint() *AffinityConstraint {
	return &AffinityConstraint{baseHard{"affinity"}}
}

func (c *AffinityConstraint) EvaluateActivity(sol Solution, ctx InsertionContext) *Violation {
	if ctx.Job.Affinity == nil {
		return nil
	}
	for _, r := range sol.Routes() {
		for _, a := range r.Activities {
			if a.Kind != schedule.JobPlace {
				continue
			}
			other, ok := sol.JobByID(a.JobID)
			if !ok || other.Affinity == nil || other.Affinity.Key != ctx.Job.Affinity.Key {
				continue
			}
			if r.VehicleID != ctx.Route.VehicleID {
				return &Violation{Code: "AFFINITY"}
			}
			if other.Affinity.Sequence < ctx.Job.Affinity.Sequence && r.ShiftIndex > ctx.Route.ShiftIndex {
				return &Violation{Code: "AFFINITY_SEQUENCE"}
			}
			if other.Affinity.Sequence > ctx.Job.Affinity.Sequence && r.ShiftIndex < ctx.Route.ShiftIndex {
				return &Violation{Code: "AFFINITY_SEQUENCE"}
			}
		}
	}
	return nil
}

// ReloadBalanceConstraint enforces that delivery demand loaded between
// consecutive reloads never exceeds vehicle capacity, and that a
// resource-pooled reload's aggregate delivery draw stays within its pool
// capacity across every route drawing from it.
type ReloadBalanceConstraint struct {
	baseHard
	Capacity model.Demand
	// shifts is the vehicle type's shift list, needed to resolve a
	// ReloadActivity's PlaceIndex back to the model.Reload it represents
	// (mirroring how a JobPlace activity's PlaceIndex indexes Task.Places).
	shifts []model.Shift
	// pools tracks, per resource id, each drawing route's own trip-segment
	// draw, keyed by route so a route's stale contribution can be excluded
	// when probing its own candidate insertion. Folded together from every
	// route's local contribution via MergeStates in AcceptSolution.
	pools map[string]map[string]int64
}

func NewReloadBalanceConstraint(capacity model.Demand, shifts []model.Shift) *ReloadBalanceConstraint {
	return &ReloadBalanceConstraint{baseHard{"reload_balance"}, capacity, shifts, map[string]map[string]int64{}}
}

func (c *ReloadBalanceConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	load := ctx.NewActivity.LoadAfter
	if !load.LessEq(c.Capacity) {
		return &Violation{Code: "RELOAD_BALANCE"}
	}
	reloadIdx, reload, ok := c.reloadFor(ctx.Route, ctx.Position)
	if !ok || reload.ResourceID == "" {
		return nil
	}
	draw := c.segmentDraw(ctx.Route, reloadIdx)
	var others int64
	key := routeKey(ctx.Route)
	for rk, amount := range c.pools[reload.ResourceID] {
		if rk != key {
			others += amount
		}
	}
	if others+draw > reload.Capacity {
		return &Violation{Code: "RELOAD_BALANCE_POOL"}
	}
	return nil
}

// reloadFor resolves the pooled reload, if any, whose trip segment
// contains position pos in route, by walking backward from pos to the
// nearest preceding reload activity.
func (c *ReloadBalanceConstraint) reloadFor(route *schedule.Route, pos int) (int, model.Reload, bool) {
	if route.ShiftIndex < 0 || route.ShiftIndex >= len(c.shifts) {
		return 0, model.Reload{}, false
	}
	reloads := c.shifts[route.ShiftIndex].Reloads
	for i := pos - 1; i >= 0 && i < len(route.Activities); i-- {
		a := route.Activities[i]
		if a.Kind != schedule.ReloadActivity {
			continue
		}
		if a.PlaceIndex < 0 || a.PlaceIndex >= len(reloads) {
			return 0, model.Reload{}, false
		}
		return i, reloads[a.PlaceIndex], true
	}
	return 0, model.Reload{}, false
}

// segmentDraw sums route's capacity curve immediately after reloadIdx,
// the amount the trip segment starting there preloads for delivery (§4.1:
// "deliveries refilled from the sum of demands of subsequent delivery
// tasks in that trip segment").
func (c *ReloadBalanceConstraint) segmentDraw(route *schedule.Route, reloadIdx int) int64 {
	if reloadIdx < 0 || reloadIdx >= len(route.Activities) {
		return 0
	}
	var total int64
	for _, v := range route.Activities[reloadIdx].LoadAfter {
		total += v
	}
	return total
}

// MergeStates combines two resource-pool maps (resource id -> route key ->
// draw), unioning keys and letting right's entries supersede left's for
// the same (resource, route) pair — the per-route draw right carries is
// always the fresher recompute.
func (c *ReloadBalanceConstraint) MergeStates(left, right interface{}) interface{} {
	lm, _ := left.(map[string]map[string]int64)
	rm, _ := right.(map[string]map[string]int64)
	out := make(map[string]map[string]int64, len(lm))
	for res, byRoute := range lm {
		cp := make(map[string]int64, len(byRoute))
		for k, v := range byRoute {
			cp[k] = v
		}
		out[res] = cp
	}
	for res, byRoute := range rm {
		dst, ok := out[res]
		if !ok {
			dst = make(map[string]int64, len(byRoute))
			out[res] = dst
		}
		for k, v := range byRoute {
			dst[k] = v
		}
	}
	return out
}

func (c *ReloadBalanceConstraint) AcceptSolution(sol Solution) {
	acc := map[string]map[string]int64{}
	for _, r := range sol.Routes() {
		local := c.routeLocalDraws(r)
		if len(local) == 0 {
			continue
		}
		perRoute := map[string]map[string]int64{}
		key := routeKey(r)
		for res, amt := range local {
			perRoute[res] = map[string]int64{key: amt}
		}
		acc = c.MergeStates(acc, perRoute).(map[string]map[string]int64)
	}
	c.pools = acc
}

// routeLocalDraws returns, for every pooled reload route passes through,
// the trip-segment draw recorded at that reload.
func (c *ReloadBalanceConstraint) routeLocalDraws(route *schedule.Route) map[string]int64 {
	if route.ShiftIndex < 0 || route.ShiftIndex >= len(c.shifts) {
		return nil
	}
	reloads := c.shifts[route.ShiftIndex].Reloads
	var out map[string]int64
	for i, a := range route.Activities {
		if a.Kind != schedule.ReloadActivity || a.PlaceIndex < 0 || a.PlaceIndex >= len(reloads) {
			continue
		}
		rl := reloads[a.PlaceIndex]
		if rl.ResourceID == "" {
			continue
		}
		if out == nil {
			out = map[string]int64{}
		}
		out[rl.ResourceID] += c.segmentDraw(route, i)
	}
	return out
}

// routeKey identifies a route for pool-contribution bookkeeping; a
// vehicle can hold at most one route per shift, so (vehicle, shift) is
// unique within a solution.
func routeKey(route *schedule.Route) string {
	return route.VehicleID + "#" + strconv.Itoa(route.ShiftIndex)
}

// SyncConstraint enforces that sync-group members land on distinct
// vehicles within the group's tolerance window. It owns solution-level
// state: per sync key, the tentative (vehicle, service_start) set.
type SyncConstraint struct {
	baseHard
	tentative map[string][]syncPlacement
}

type syncPlacement struct {
	vehicleID string
	serviceStart int64
}

func NewSyncConstraint() *SyncConstraint {
	return &SyncConstraint{baseHard{"sync"}, map[string][]syncPlacement{}}
}

func (c *SyncConstraint) EvaluateActivity(_ Solution, ctx InsertionContext) *Violation {
	if ctx.Job.Sync == nil {
		return nil
	}
	key := ctx.Job.Sync.Key
	placements := c.tentative[key]
	for _, p := range placements {
		if p.vehicleID == ctx.Route.VehicleID {
			return &Violation{Code: "SYNC_VEHICLE_REUSED"}
		}
	}
	if len(placements) == 0 {
		return nil
	}
	minStart, maxStart := placements[0].serviceStart, placements[0].serviceStart
	for _, p := range placements[1:] {
		if p.serviceStart < minStart {
			minStart = p.serviceStart
		}
		if p.serviceStart > maxStart {
			maxStart = p.serviceStart
		}
	}
	tol := ctx.Job.Sync.ToleranceSec
	candidate := ctx.NewActivity.ServiceStart
	if candidate < minStart-tol || candidate > maxStart+tol {
		return &Violation{Code: "SYNC_TOLERANCE"}
	}
	return nil
}

// Stage records a tentative placement during multi-member atomic
// insertion, before the whole group is committed by the recreate layer.
func (c *SyncConstraint) Stage(key, vehicleID string, serviceStart int64) {
	c.tentative[key] = append(c.tentative[key], syncPlacement{vehicleID, serviceStart})
}

// Rollback discards every tentative placement for key, used when any
// group member fails to insert.
func (c *SyncConstraint) Rollback(key string) {
	delete(c.tentative, key)
}

// MergeStates combines two tentative-placement maps by concatenating the
// placement lists they hold for each sync key.
func (c *SyncConstraint) MergeStates(left, right interface{}) interface{} {
	lm, _ := left.(map[string][]syncPlacement)
	rm, _ := right.(map[string][]syncPlacement)
	out := make(map[string][]syncPlacement, len(lm))
	for k, v := range lm {
		out[k] = append([]syncPlacement(nil), v...)
	}
	for k, v := range rm {
		out[k] = append(out[k], v...)
	}
	return out
}

// AcceptSolution rebuilds tentative from the committed routes themselves
// (ground truth), folding each route's own sync placements into the
// running total via MergeStates. Recreate's Stage calls give visibility
// across not-yet-committed group-mates during one atomic multi-member
// insertion; once every member lands on a route, this rebuild supersedes
// the staged entries with the real committed (vehicle, service_start).
func (c *SyncConstraint) AcceptSolution(sol Solution) {
	acc := map[string][]syncPlacement{}
	for _, r := range sol.Routes() {
		local := map[string][]syncPlacement{}
		seen := map[string]bool{}
		for _, a := range r.Activities {
			if a.Kind != schedule.JobPlace || seen[a.JobID] {
				continue
			}
			seen[a.JobID] = true
			job, ok := sol.JobByID(a.JobID)
			if !ok || job.Sync == nil || job.Sync.Key == "" {
				continue
			}
			local[job.Sync.Key] = append(local[job.Sync.Key], syncPlacement{r.VehicleID, a.ServiceStart})
		}
		acc = c.MergeStates(acc, local).(map[string][]syncPlacement)
	}
	c.tentative = acc
}

// BuiltinHardPack returns the 11 mandatory hard constraints in
// evaluation order, parameterized for one vehicle type/route. The
// engine constructs one pipeline per route (capacity/skills/limits differ
// per vehicle type) sharing the solution-level constraints (group,
// compatibility, same-assignee, affinity, sync) across routes via a single
// shared instance.
func BuiltinHardPack(capacity model.Demand, vehicleSkills map[string]struct{}, limits model.Limits, shared *SharedConstraints) []Constraint {
	return BuiltinHardPackWithShifts(capacity, vehicleSkills, limits, nil, shared)
}

// BuiltinHardPackWithShifts is BuiltinHardPack plus the vehicle type's
// shift list, needed so ReloadBalanceConstraint can resolve a reload
// activity's resource pool.
func BuiltinHardPackWithShifts(capacity model.Demand, vehicleSkills map[string]struct{}, limits model.Limits, shifts []model.Shift, shared *SharedConstraints) []Constraint {
	return []Constraint{
		NewTimeConstraint(),
		NewCapacityConstraint(capacity),
		NewSkillsConstraint(vehicleSkills),
		NewLimitsConstraint(limits),
		shared.Group,
		shared.Compatibility,
		NewPickupDeliveryConstraint(),
		NewReloadBalanceConstraint(capacity, shifts),
		shared.SameAssignee,
		shared.Affinity,
		shared.Sync,
	}
}

// SharedConstraints groups the solution-scoped (cross-route) hard
// constraints that every per-route pipeline must reference the same
// instance of, so their AcceptSolution state stays consistent.
type SharedConstraints struct {
	Group *GroupConstraint
	Compatibility *CompatibilityConstraint
	SameAssignee *SameAssigneeConstraint
	Affinity *AffinityConstraint
	Sync *SyncConstraint
}

// NewSharedConstraints constructs one instance of each solution-scoped
// constraint for a solve run.
func NewSharedConstraints() *SharedConstraints {
	return &SharedConstraints{
		Group: NewGroupConstraint(),
		Compatibility: NewCompatibilityConstraint(),
		SameAssignee: NewSameAssigneeConstraint(),
		Affinity: NewAffinityConstraint(),
		Sync: NewSyncConstraint(),
	}
}
