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

package service

import (
	"errors"
	"time"

	"blockarchitech.com/scheduler/internal/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MinDurationMinute = 5
	MaxDurationMinute = 480
	MaxBreakMinute    = 120
	MaxIntegrations   = 10
)

var supportedProviders = []any{
	models.ProviderGoogleCalendar,
	models.ProviderOutlookCalendar,
	models.ProviderAppleCalendar,
	models.ProviderZoom,
	models.ProviderGoogleMeet,
}

// IntegrationInput identifies a connected account. Credentials are not accepted here.
type IntegrationInput struct {
	Provider  string `json:"provider"`
	AccountID string `json:"accountId"`
}

func (i IntegrationInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Provider, validation.Required, validation.In(supportedProviders...)),
		validation.Field(&i.AccountID, validation.Required, validation.Length(1, 320)),
	)
}

// UpdateSettingsRequest is a partial update; nil fields are left unchanged.
type UpdateSettingsRequest struct {
	DurationMinute            *int                `json:"durationMinute"`
	BreakingTimeBetweenEvents *int                `json:"breakingTimeBetweenEvents"`
	FaceID                    *bool               `json:"faceId"`
	PushNotifications         *bool               `json:"pushNotifications"`
	Integrations              *[]IntegrationInput `json:"integrations"`
}

func (r UpdateSettingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DurationMinute, validation.NilOrNotEmpty,
			validation.Min(MinDurationMinute), validation.Max(MaxDurationMinute)),
		validation.Field(&r.BreakingTimeBetweenEvents, validation.Min(0), validation.Max(MaxBreakMinute)),
		validation.Field(&r.Integrations, validation.Length(0, MaxIntegrations), validation.By(uniqueIntegrations)),
	)
}

func uniqueIntegrations(value any) error {
	list, ok := value.(*[]IntegrationInput)
	if !ok || list == nil {
		return nil
	}
	seen := make(map[IntegrationInput]struct{}, len(*list))
	for _, in := range *list {
		if _, dup := seen[in]; dup {
			return errors.New("must not contain the same account twice")
		}
		seen[in] = struct{}{}
	}
	return nil
}

// apply merges the request into settings. Integrations keep their stored
// credentials and connection time when the same account is listed again.
func (r UpdateSettingsRequest) apply(settings *models.Settings, now time.Time) {
	if r.DurationMinute != nil {
		settings.DurationMinute = *r.DurationMinute
	}
	if r.BreakingTimeBetweenEvents != nil {
		settings.BreakingTimeBetweenEvents = *r.BreakingTimeBetweenEvents
	}
	if r.FaceID != nil {
		settings.FaceID = *r.FaceID
	}
	if r.PushNotifications != nil {
		settings.PushNotifications = *r.PushNotifications
	}
	if r.Integrations != nil {
		existing := make(map[IntegrationInput]models.Integration, len(settings.Integrations))
		for _, in := range settings.Integrations {
			existing[IntegrationInput{Provider: in.Provider, AccountID: in.AccountID}] = in
		}
		next := make([]models.Integration, 0, len(*r.Integrations))
		for _, in := range *r.Integrations {
			if prev, ok := existing[in]; ok {
				next = append(next, prev)
				continue
			}
			next = append(next, models.Integration{Provider: in.Provider, AccountID: in.AccountID, ConnectedAt: now})
		}
		settings.Integrations = next
	}
}
