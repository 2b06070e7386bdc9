/*
Copyright 2025 Taco Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package nacho

import (
	"context"
	"time"

	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

// RegisterUser creates a user from their Discord identity.
func (n *Nacho) RegisterUser(ctx context.Context, usr *model.User) (*model.User, error) {
	if usr.UserID == "" {
		usr.UserID = model.GenerateUUIDWithSuffix("usr")
	}
	return n.datasource.CreateUser(ctx, usr)
}

func (n *Nacho) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return n.datasource.GetUserByID(ctx, userID)
}

func (n *Nacho) UpdateUserProfile(ctx context.Context, usr *model.User) error {
	return n.datasource.UpdateUserProfile(ctx, usr)
}

// ChangeUserRegion switches the user's region; limited to once per the
// configured cooldown.
func (n *Nacho) ChangeUserRegion(ctx context.Context, userID, newRegion string) error {
	if newRegion == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Region must not be empty", nil)
	}
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	cooldown := time.Duration(cnf.Users.RegionChangeCooldownDays) * 24 * time.Hour
	return n.datasource.ChangeUserRegion(ctx, userID, newRegion, cooldown)
}

func (n *Nacho) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	return n.datasource.GetUserStats(ctx, userID)
}
