package ports

import "github.com/gin-gonic/gin"

type RUMHandler interface {
	Ingest(c *gin.Context)
	Summary(c *gin.Context)
}

type LeadHandler interface {
	Submit(c *gin.Context)
}

type PageHandler interface {
	Serve(page string) gin.HandlerFunc
	NotFound(c *gin.Context)
}
