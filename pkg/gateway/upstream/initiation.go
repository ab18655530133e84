package upstream

import (
	"fmt"

	"github.com/pathwise-app/conversation-service/pkg/gateway/profile"
)

// InitiationMessage is the single first frame sent to the agent socket. The
// agent reads it before producing any audio, so it must precede every
// client-origin frame.
type InitiationMessage struct {
	Type                        string           `json:"type"`
	ConversationConfigOverrides ConfigOverrides  `json:"conversation_config_overrides"`
	DynamicVariables            DynamicVariables `json:"dynamic_variables"`
	UserID                      string           `json:"user_id"`
}

type ConfigOverrides struct {
	Agent AgentOverride `json:"agent"`
	TTS   *TTSOverride  `json:"tts,omitempty"`
}

type AgentOverride struct {
	FirstMessage string `json:"first_message"`
}

type TTSOverride struct {
	VoiceID string `json:"voice_id"`
}

type DynamicVariables struct {
	FirstName   string `json:"first_name"`
	PrimaryGoal string `json:"primary_goal"`
}

func Greeting(p profile.Profile) string {
	return fmt.Sprintf("Hey %s, how is your %s going today?", p.FirstName, p.PrimaryGoal)
}

// Initiation builds the initiation frame for p. voiceID is optional; when
// empty the agent's default voice is kept.
func Initiation(p profile.Profile, voiceID string) InitiationMessage {
	msg := InitiationMessage{
		Type: "conversation_initiation_client_data",
		ConversationConfigOverrides: ConfigOverrides{
			Agent: AgentOverride{FirstMessage: Greeting(p)},
		},
		DynamicVariables: DynamicVariables{
			FirstName:   p.FirstName,
			PrimaryGoal: p.PrimaryGoal,
		},
		UserID: p.UserID,
	}
	if voiceID != "" {
		msg.ConversationConfigOverrides.TTS = &TTSOverride{VoiceID: voiceID}
	}
	return msg
}
