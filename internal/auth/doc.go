// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides credential management for HoloAuth.
//
// # Domain Types
//
// Credential values are created through their parse functions so that
// every value in circulation is already validated:
//   - ParseEmail - trims, lower-cases and checks the address shape
//   - ParsePassword - enforces the minimum length
//   - ParseLoginAttemptID / NewLoginAttemptID - 2FA attempt identifiers
//   - ParseTwoFACode / NewTwoFACode - six digit step-up codes
//
// # Stores
//
// The Service depends on three store contracts: UserStore,
// TwoFACodeStore and BannedTokenStore. In-memory implementations live in
// package memory, PostgreSQL users in package postgres, and Redis challenge
// and ban stores in package redis.
//
// # Services
//
// Service coordinates the five credential flows (signup, login, 2FA
// verification, logout and token verification). TokenService issues and
// validates session tokens.
package auth
