package temporal

import (
	"go.temporal.io/sdk/activity"
)

// Registry is the part of worker.Worker and the test environment used to
// register workflows and activities.
type Registry interface {
	RegisterWorkflow(w interface{})
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register wires both workflows and every activity under the names the
// workflows call them by.
func Register(r Registry, activities *ActivitiesImpl) {
	r.RegisterWorkflow(IngestionWorkflow)
	r.RegisterWorkflow(SummaryWorkflow)

	for name, fn := range map[string]interface{}{
		AppendObservationsActivityName: activities.AppendObservationsActivity,
		LoadObservationsActivityName:   activities.LoadObservationsActivity,
		BuildTrajectoriesActivityName:  activities.BuildTrajectoriesActivity,
		SummarizeActivityName:          activities.SummarizeActivity,
		SummarizeChunkActivityName:     activities.SummarizeChunkActivity,
		PublishSummariesActivityName:   activities.PublishSummariesActivity,
	} {
		r.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
}
