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

import "time"

// User is the identity record owned by the auth provider. This service only reads it.
type User struct {
	ID        string    `firestore:"id" json:"_id"`
	Email     string    `firestore:"email,omitempty" json:"email"`
	Name      string    `firestore:"name,omitempty" json:"name"`
	ImageURL  string    `firestore:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
}
