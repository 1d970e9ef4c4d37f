package canvas

import "advisory-canvas/internal/models"

// Apply mutates store with one remote change and reports whether the store
// changed. Delete of an absent ID and clear of an empty store are no-ops.
// Composite geometry is rebuilt by the store from the stored anchors.
func Apply(store *Store, change models.Change) bool {
	switch change.Kind {
	case models.ChangeAdd, models.ChangeUpdate:
		if change.Shape == nil || change.Shape.ID == "" {
			return false
		}
		store.Upsert(change.Shape)
		return true
	case models.ChangeDelete:
		return store.Remove(change.ID)
	case models.ChangeClear:
		return store.Clear() > 0
	}
	return false
}
