// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package agreement

// LDAP result codes relevant to ignore_error_and_keep_going's
// classification table. Named here rather than imported from an LDAP
// library, since the core never opens a real LDAP connection itself —
// it only needs to classify codes a Dialect implementation reports.
const (
	ldapSuccess                       = 0
	ldapOperationsError               = 1
	ldapProtocolError                 = 2
	ldapTimeLimitExceeded             = 3
	ldapSizeLimitExceeded             = 4
	ldapStrongAuthNotSupported        = 7
	ldapStrongAuthRequired            = 8
	ldapPartialResults                = 9
	ldapReferral                      = 10
	ldapAdminLimitExceeded            = 11
	ldapUnavailableCriticalExtension  = 12
	ldapConfidentialityRequired       = 13
	ldapSaslBindInProgress            = 14
	ldapNoSuchAttribute               = 16
	ldapUndefinedType                 = 17
	ldapInappropriateMatching         = 18
	ldapConstraintViolation           = 19
	ldapTypeOrValueExists             = 20
	ldapInvalidSyntax                 = 21
	ldapNoSuchObject                  = 32
	ldapAliasProblem                  = 33
	ldapInvalidDNSyntax               = 34
	ldapIsLeaf                        = 35
	ldapAliasDerefProblem             = 36
	ldapInappropriateAuth             = 48
	ldapInvalidCredentials            = 49
	ldapInsufficientAccess            = 50
	ldapBusy                          = 51
	ldapUnavailable                   = 52
	ldapUnwillingToPerform            = 53
	ldapLoopDetect                    = 54
	ldapSortControlMissing            = 60
	ldapIndexRangeError               = 61
	ldapNamingViolation               = 64
	ldapObjectClassViolation          = 65
	ldapNotAllowedOnNonLeaf           = 66
	ldapNotAllowedOnRDN               = 67
	ldapAlreadyExists                 = 68
	ldapNoObjectClassMods             = 69
	ldapResultsTooLarge               = 70
	ldapAffectsMultipleDSAs           = 71
	ldapOther                         = 80
	ldapServerDown                    = 81
	ldapLocalError                    = 82
	ldapEncodingError                 = 83
	ldapDecodingError                 = 84
	ldapTimeout                       = 85
	ldapAuthUnknown                   = 86
	ldapFilterError                   = 87
	ldapUserCancelled                 = 88
	ldapParamError                    = 89
	ldapNoMemory                      = 90
	ldapConnectError                  = 91
	ldapNotSupported                  = 92
	ldapControlNotFound               = 93
	ldapNoResultsReturned             = 94
	ldapMoreResultsToReturn           = 95
	ldapClientLoop                    = 96
	ldapReferralLimitExceeded         = 97
)

// softErrors is the set the source logs-and-skips: the consumer's own
// update-resolution engine is expected to reconcile these, so the
// session keeps streaming rather than entering backoff.
var softErrors = map[int]bool{
	ldapSuccess:              true,
	ldapNoSuchAttribute:      true,
	ldapUndefinedType:        true,
	ldapConstraintViolation:  true,
	ldapTypeOrValueExists:    true,
	ldapInvalidSyntax:        true,
	ldapNoSuchObject:         true,
	ldapInvalidDNSyntax:      true,
	ldapIsLeaf:               true,
	ldapInsufficientAccess:   true,
	ldapNamingViolation:      true,
	ldapObjectClassViolation: true,
	ldapNotAllowedOnNonLeaf:  true,
	ldapNotAllowedOnRDN:      true,
	ldapAlreadyExists:        true,
	ldapNoObjectClassMods:    true,
}

// ignoreErrorAndKeepGoing reports whether a per-operation replay
// result is soft enough to log and skip rather than end the session.
// Any code not in the source's explicit soft list — including ones
// that table never enumerated — is treated as session-ending, mirroring
// the source's fail-closed default (its switch has no default case,
// so an unrecognized code falls through to the PR_FALSE tail).
func ignoreErrorAndKeepGoing(resultCode int) bool {
	return softErrors[resultCode]
}
