// Package schedule implements automatic task placement.
//
// Callers run Plan then Commit. Plan is the pure compute phase and Commit the
// side-effecting apply phase:
//   - Plan sorts a batch with SortBatch (deadline, importance, duration) and hands it
//     to Engine.Place, which walks days forward and puts each task in the first slot
//     that fits, growing an in-memory BusySet as it goes. FreeSlots finds the gaps in
//     one day's busy intervals inside a working window.
//   - Commit writes placements back one task at a time and builds the Report.
//
// Nothing here locks. Callers serialize passes per owner.
package schedule
