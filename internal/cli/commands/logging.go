// Copyright 2024 dbsnap Authors
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

package commands

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// setupLogging points logrus, and the standard logger, at stderr or at
// logFile, filtered to level. "off" discards everything.
func setupLogging(level, logFile string) error {
	level = strings.ToLower(level)
	if level == "off" || level == "none" {
		log.SetOutput(io.Discard)
		logrus.SetOutput(io.Discard)
		return nil
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	log.SetOutput(out)
	logrus.SetOutput(out)

	switch level {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "", "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}
