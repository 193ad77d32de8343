package routes

var (
	BearerAuth = []map[string][]string{
		{"bearer": {}},
	}
)

type Tag string

const (
	TagHealth   Tag = "health"
	TagIam      Tag = "iam"
	TagPrograms Tag = "programs"
	TagJobs     Tag = "jobs"
)

func (t Tag) String() string { return string(t) }

func AllTags() []string {
	return []string{
		TagHealth.String(),
		TagIam.String(),
		TagPrograms.String(),
		TagJobs.String(),
	}
}
