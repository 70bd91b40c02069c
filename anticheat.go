/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// trackRecord is the server-held ground truth for one player during a
// game. Client-reported values are bounded against it; lastSeq only
// ever moves forward.
type trackRecord struct {
	lastHealth int
	lastCombo  int
	lastScore  int
	lastSeq    int64
}

func newTrackRecord() *trackRecord {
	return &trackRecord{lastHealth: startingHealth}
}

// cheatPolicy bounds how much a reported value may move between two
// accepted updates. All checks are pure; the caller decides whether a
// rejected triple is dropped or corrected.
type cheatPolicy struct {
	healthSlack  int // largest accepted health increase per update
	comboStep    int // largest accepted combo increase per update
	scoreStep    int // largest accepted score increase per update
	tolerancePct int // band a final score may sit above the tracked score
}

func policyFromConfig(cfg *Config) cheatPolicy {
	return cheatPolicy{
		healthSlack:  cfg.healthSlack,
		comboStep:    cfg.comboStep,
		scoreStep:    cfg.scoreStep,
		tolerancePct: cfg.scoreTolerance,
	}
}

// check reports whether a proposed (health, combo, score) triple is
// plausible given the record. Health may regain a small slack between
// updates (healing items, network jitter) but is otherwise capped;
// combo either advances by at most comboStep or resets to exactly
// zero; score never decreases and never jumps more than scoreStep.
func (cp cheatPolicy) check(rec *trackRecord, health, combo, score int) (bool, string) {
	switch {
	case health < 0 || health > startingHealth:
		return false, "health out of range"
	case health > rec.lastHealth+cp.healthSlack:
		return false, "health increase exceeds slack"
	case combo < 0:
		return false, "negative combo"
	case combo != 0 && combo < rec.lastCombo:
		return false, "combo decrease without reset"
	case combo > rec.lastCombo+cp.comboStep:
		return false, "combo increase exceeds step"
	case score < rec.lastScore:
		return false, "score decrease"
	case score > rec.lastScore+cp.scoreStep:
		return false, "score increase exceeds step"
	}
	return true, ""
}

// clamp corrects an implausible triple to the nearest plausible one.
// An implausible combo drop is treated as a reset to zero.
func (cp cheatPolicy) clamp(rec *trackRecord, health, combo, score int) (int, int, int) {
	health = min(health, rec.lastHealth+cp.healthSlack)
	health = max(min(health, startingHealth), 0)

	switch {
	case combo <= 0:
		combo = 0
	case combo < rec.lastCombo:
		combo = 0
	case combo > rec.lastCombo+cp.comboStep:
		combo = rec.lastCombo + cp.comboStep
	}

	score = max(score, rec.lastScore)
	score = min(score, rec.lastScore+cp.scoreStep)

	return health, combo, score
}

// finalScore accepts a claimed end-of-song score only if it sits
// between the tracked score and a small percentage above it, covering
// the updates a client legitimately had in flight when it finished.
// Anything outside the band is replaced by the tracked value.
func (cp cheatPolicy) finalScore(rec *trackRecord, claimed int) int {
	ceiling := rec.lastScore + rec.lastScore*cp.tolerancePct/100
	if claimed < rec.lastScore || claimed > ceiling {
		return rec.lastScore
	}
	return claimed
}
