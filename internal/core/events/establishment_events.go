package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeContextChanged   = "establishment.context_changed"
	EventTypeSwitched         = "establishment.switched"
	EventTypePreferenceFailed = "establishment.preference_failed"
	EventTypeDirectoryChanged = "directory.affiliations_changed"
)

type ContextChangedEvent struct {
	BaseEvent
	ProfessionalID      string `json:"professional_id"`
	State               string `json:"state"`
	ActiveAffiliationID string `json:"active_affiliation_id,omitempty"`
	Version             uint64 `json:"version"`
}

func NewContextChangedEvent(professionalID, state, activeAffiliationID string, version uint64) *ContextChangedEvent {
	return &ContextChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeContextChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"professional_id":       professionalID,
				"state":                 state,
				"active_affiliation_id": activeAffiliationID,
				"version":               version,
			},
		},
		ProfessionalID:      professionalID,
		State:               state,
		ActiveAffiliationID: activeAffiliationID,
		Version:             version,
	}
}

type SwitchedEvent struct {
	BaseEvent
	ProfessionalID      string `json:"professional_id"`
	FromAffiliationID   string `json:"from_affiliation_id,omitempty"`
	ToAffiliationID     string `json:"to_affiliation_id"`
	EstablishmentID     string `json:"establishment_id"`
	PreferencePersisted bool   `json:"preference_persisted"`
}

func NewSwitchedEvent(professionalID, fromAffiliationID, toAffiliationID, establishmentID string, persisted bool) *SwitchedEvent {
	return &SwitchedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSwitched,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"professional_id":      professionalID,
				"from_affiliation_id":  fromAffiliationID,
				"to_affiliation_id":    toAffiliationID,
				"establishment_id":     establishmentID,
				"preference_persisted": persisted,
			},
		},
		ProfessionalID:      professionalID,
		FromAffiliationID:   fromAffiliationID,
		ToAffiliationID:     toAffiliationID,
		EstablishmentID:     establishmentID,
		PreferencePersisted: persisted,
	}
}

type PreferenceFailedEvent struct {
	BaseEvent
	ProfessionalID string `json:"professional_id"`
	AffiliationID  string `json:"affiliation_id"`
	FailureReason  string `json:"failure_reason"`
}

func NewPreferenceFailedEvent(professionalID, affiliationID, failureReason string) *PreferenceFailedEvent {
	return &PreferenceFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePreferenceFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"professional_id": professionalID,
				"affiliation_id":  affiliationID,
				"failure_reason":  failureReason,
			},
		},
		ProfessionalID: professionalID,
		AffiliationID:  affiliationID,
		FailureReason:  failureReason,
	}
}

// DirectoryChangedEvent is raised when the change feed reports new
// affiliation data for a professional.
type DirectoryChangedEvent struct {
	BaseEvent
	ProfessionalID string `json:"professional_id"`
}

func NewDirectoryChangedEvent(professionalID string) *DirectoryChangedEvent {
	return &DirectoryChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDirectoryChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"professional_id": professionalID,
			},
		},
		ProfessionalID: professionalID,
	}
}
