package httpapi

import (
	hpprof "net/http/pprof"

	"github.com/gin-gonic/gin"
)

// MountPprof registers the runtime profiling endpoints under /debug/pprof.
func MountPprof(g gin.IRoutes) {
	g.GET("/debug/pprof/", gin.WrapF(hpprof.Index))
	g.GET("/debug/pprof/cmdline", gin.WrapF(hpprof.Cmdline))
	g.GET("/debug/pprof/profile", gin.WrapF(hpprof.Profile))
	g.GET("/debug/pprof/symbol", gin.WrapF(hpprof.Symbol))
	g.POST("/debug/pprof/symbol", gin.WrapF(hpprof.Symbol))
	g.GET("/debug/pprof/trace", gin.WrapF(hpprof.Trace))
	// Named profiles (heap, goroutine, ...) are served by Index.
	g.GET("/debug/pprof/:name", gin.WrapF(hpprof.Index))
}
