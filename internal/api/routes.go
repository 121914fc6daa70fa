package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	channels := s.router.Group("/channels")
	{
		channels.GET("", s.channelHandler.ListChannels)
		channels.POST("", s.channelHandler.StartChannel)
		channels.POST("/:id/stop", s.channelHandler.StopChannel)
		channels.GET("/:id/status", s.channelHandler.GetChannelStatus)
		channels.GET("/:id/frame", s.channelHandler.GetLatestFrame)
		channels.GET("/:id/stream", s.channelHandler.StreamChannel)
	}
}
