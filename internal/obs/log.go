package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

const serviceName = "kolekta-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line writer every structured emitter goes
// through. Tests swap its output to capture entries.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Emit writes one JSON log line stamped with the service name. Request
// logging and audit events share this path so every line carries the
// same envelope.
func Emit(entry map[string]any) {
	if _, ok := entry["service"]; !ok {
		entry["service"] = serviceName
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"service":"` + serviceName + `","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	Emit(entry)
}
