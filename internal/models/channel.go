package models

import "time"

// MonitorState is the lifecycle state of a channel monitor.
type MonitorState string

const (
	// MonitorStateInit means the monitor is constructed but not yet cycling.
	MonitorStateInit MonitorState = "INIT"
	// MonitorStateRunning is the steady per-frame cycle.
	MonitorStateRunning MonitorState = "RUNNING"
	// MonitorStateStopped is reached only on an explicit stop request.
	MonitorStateStopped MonitorState = "STOPPED"
	// MonitorStateError means required detection resources failed to load.
	// The monitor never leaves this state.
	MonitorStateError MonitorState = "ERROR"
)

// ChannelRequest configures one channel to monitor.
type ChannelRequest struct {
	ChannelID   string `json:"channel_id" binding:"required"`
	ChannelName string `json:"channel_name"`
	StreamURL   string `json:"stream_url" binding:"required"`
}

// ChannelStatus is the externally visible status of one monitored channel.
type ChannelStatus struct {
	ChannelID     string       `json:"channel_id"`
	ChannelName   string       `json:"channel_name"`
	StreamURL     string       `json:"stream_url"`
	State         MonitorState `json:"state"`
	FrameCount    int64        `json:"frame_count"`
	LastFrameTime time.Time    `json:"last_frame_time"`
	Error         string       `json:"error,omitempty"`
}
