package utilities

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

var logMu sync.Mutex

// CreateLog agrega una línea al archivo diario <dir>/<prefix>_YYYYMMDD.log.
func CreateLog(dir, prefix, message string) error {
	return createLogAt(dir, prefix, message, time.Now())
}

func createLogAt(dir, prefix, message string, now time.Time) error {
	if dir == "" {
		dir = "logs"
	}
	logMu.Lock()
	defer logMu.Unlock()

	// Crear carpeta si no existe
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(dir, prefix+"_"+now.Format("20060102")+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(now.Format("15:04:05") + " - " + message + "\n")
	return err
}
