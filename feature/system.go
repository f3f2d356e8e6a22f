//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package feature

import (
	"os"
	"strings"
	"sync"

	"github.com/koog-community/koog-go/log"
)

// FeaturesEnv names the environment variable holding a comma-separated
// list of system feature keys to auto-install on every pipeline.
const FeaturesEnv = "KOOG_FEATURES"

var (
	systemMu       sync.RWMutex
	systemFeatures = map[Key]func() Feature{}

	requestedOnce sync.Once
	requestedKeys []Key

	// processOption supplements the environment variable; Go has no VM
	// options, so it is a process-wide setter instead.
	processMu     sync.Mutex
	processOption string
)

// RegisterSystemFeature registers a system feature constructor under its
// key. System features are candidates for auto-install via the
// KOOG_FEATURES environment variable or SetProcessFeatures.
func RegisterSystemFeature(key Key, constructor func() Feature) {
	systemMu.Lock()
	defer systemMu.Unlock()
	systemFeatures[key] = constructor
}

// SetProcessFeatures sets the process-wide feature list, equivalent to
// the KOOG_FEATURES environment variable. Must be called before the
// first PrepareAllFeatures; later calls have no effect.
func SetProcessFeatures(list string) {
	processMu.Lock()
	defer processMu.Unlock()
	processOption = list
}

// requestedSystemKeys parses the requested feature keys once per
// process. The environment variable and the process option are merged.
func requestedSystemKeys() []Key {
	requestedOnce.Do(func() {
		processMu.Lock()
		merged := processOption
		processMu.Unlock()
		if env := os.Getenv(FeaturesEnv); env != "" {
			if merged != "" {
				merged += ","
			}
			merged += env
		}
		seen := map[Key]bool{}
		for _, raw := range strings.Split(merged, ",") {
			name := Key(strings.TrimSpace(raw))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			requestedKeys = append(requestedKeys, name)
		}
	})
	return requestedKeys
}

// installSystemFeatures installs every requested system feature that is
// not yet installed. Unknown keys are logged and skipped.
func installSystemFeatures(p *Pipeline) {
	for _, key := range requestedSystemKeys() {
		systemMu.RLock()
		constructor, ok := systemFeatures[key]
		systemMu.RUnlock()
		if !ok {
			log.Warnf("unknown system feature %q requested via %s, skipping", key, FeaturesEnv)
			continue
		}
		if p.IsInstalled(key) {
			continue
		}
		if err := p.Install(constructor()); err != nil {
			log.Errorf("auto-install system feature %q: %v", key, err)
		}
	}
}
