/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package models

import (
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultDurationMinute            = 30
	DefaultBreakingTimeBetweenEvents = 0
)

// Integration providers.
const (
	ProviderGoogleCalendar  = "google_calendar"
	ProviderOutlookCalendar = "outlook_calendar"
	ProviderAppleCalendar   = "apple_calendar"
	ProviderZoom            = "zoom"
	ProviderGoogleMeet      = "google_meet"
)

// Integration describes a calendar or conferencing account connected by the user.
type Integration struct {
	Provider    string        `firestore:"provider" json:"provider"`
	AccountID   string        `firestore:"accountId" json:"accountId"`
	ConnectedAt time.Time     `firestore:"connectedAt,omitempty" json:"connectedAt"`
	Token       *oauth2.Token `firestore:"token,omitempty" json:"-"`
}

// Settings holds the scheduling preferences of a single user. There is at most one per user.
type Settings struct {
	ID                        string        `firestore:"-" json:"_id"`
	UserID                    string        `firestore:"userId" json:"userId"`
	DurationMinute            int           `firestore:"durationMinute" json:"durationMinute"`
	BreakingTimeBetweenEvents int           `firestore:"breakingTimeBetweenEvents" json:"breakingTimeBetweenEvents"`
	FaceID                    bool          `firestore:"faceId" json:"faceId"`
	PushNotifications         bool          `firestore:"pushNotifications" json:"pushNotifications"`
	Integrations              []Integration `firestore:"integrations" json:"integrations"`
	CreatedAt                 time.Time     `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt                 time.Time     `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// DefaultSettings returns the initial settings for a newly provisioned user.
// It is the only place the zero state of a Settings record is defined.
// ID and timestamps are left for the repository to assign on create.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:                    userID,
		DurationMinute:            DefaultDurationMinute,
		BreakingTimeBetweenEvents: DefaultBreakingTimeBetweenEvents,
		FaceID:                    false,
		PushNotifications:         false,
		Integrations:              []Integration{},
	}
}

// Clone returns a deep copy, so stored records never alias caller memory.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	c.Integrations = make([]Integration, len(s.Integrations))
	for i, in := range s.Integrations {
		c.Integrations[i] = in
		if in.Token != nil {
			tok := *in.Token
			c.Integrations[i].Token = &tok
		}
	}
	return &c
}
