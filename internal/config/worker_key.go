package config

type WorkerKeyStruct struct {
	PersistResultsQueue string
	PersistDraftsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue: "persist_results_queue",
	PersistDraftsQueue:  "persist_drafts_queue",
}
