/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package decoder

import "errors"

// Sentinel error kinds. ErrPrecondition and ErrOracleInconsistency
// mark programming errors and fatal input errors respectively — the
// caller's only recovery is to discard the decoder instance.
// ErrConfigInvalid wraps any error config.DecoderConfig.Check()
// reports when New validates its configuration, so callers can
// errors.Is against one package.
var (
	ErrConfigInvalid       = errors.New("decoder: invalid configuration")
	ErrPrecondition        = errors.New("decoder: precondition violated")
	ErrOracleInconsistency = errors.New("decoder: oracle inconsistency")
	ErrNumericAnomaly      = errors.New("decoder: numeric anomaly")
)
