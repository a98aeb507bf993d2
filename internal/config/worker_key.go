package config

type WorkerKeyStruct struct {
	PersistAnswersQueue     string
	PersistViolationsQueue  string
	PersistSubmissionsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:     "persist_answers_queue",
	PersistViolationsQueue:  "persist_violations_queue",
	PersistSubmissionsQueue: "persist_submissions_queue",
}
