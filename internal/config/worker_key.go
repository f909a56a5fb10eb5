package config

type WorkerKeyStruct struct {
	PersistAuthEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAuthEventsQueue: "persist_auth_events_queue",
}
