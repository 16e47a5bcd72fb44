package observability

import (
	"net/http"
	"net/http/pprof"
)

// Config captures opt-in diagnostics mounted on the relay endpoint.
type Config struct {
	EnablePprof bool `yaml:"enable_pprof"`
}

// Register mounts the pprof handlers under /debug/pprof/ when enabled.
func (c Config) Register(mux *http.ServeMux) {
	if !c.EnablePprof || mux == nil {
		return
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
