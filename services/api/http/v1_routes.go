package http

// registerV1Routes sets up the v1 API structure
// Groups: /api/v1/devices, /api/v1/realtime
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	v1.GET("/info", s.handleV1Info)

	// Device endpoints - current aggregate and stored history
	dev := v1.Group("/devices")
	{
		dev.GET("", s.handleV1ListDevices)
		dev.GET("/summary", s.handleV1DevicesSummary)
		dev.GET("/random", s.handleV1RandomDevice)
		dev.GET("/history", s.handleV1DeviceHistory)
		dev.GET("/averages", s.handleV1OccupancyAverages)
	}

	// Realtime endpoints - latest refresh and live push
	realtime := v1.Group("/realtime")
	{
		realtime.GET("/now", s.handleV1RealtimeNow)
		realtime.GET("/ws", s.handleV1RealtimeWS)
	}
}
