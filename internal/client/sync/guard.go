package sync

import (
	"time"

	"github.com/iudanet/worksync/internal/clock"
	"github.com/iudanet/worksync/internal/fingerprint"
	"github.com/iudanet/worksync/internal/models"
)

// GuardState - состояние защиты от петли синхронизации.
type GuardState int

const (
	// StateIdle - нет неподтвержденных изменений и окна подавления
	StateIdle GuardState = iota
	// StatePendingLocalWrite - локальное изменение ожидает подтверждения эхом
	StatePendingLocalWrite
	// StateSuppressingRemoteEcho - недавно применен удаленный снимок, коммиты откладываются
	StateSuppressingRemoteEcho
)

func (s GuardState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingLocalWrite:
		return "pending-local-write"
	case StateSuppressingRemoteEcho:
		return "suppressing-remote-echo"
	default:
		return "unknown"
	}
}

// RejectReason объясняет, почему входящий снимок не был применен.
type RejectReason string

const (
	// RejectNone - снимок принят
	RejectNone RejectReason = ""
	// RejectPendingNewer - локальное неподтвержденное изменение новее снимка
	RejectPendingNewer RejectReason = "pending local write is newer than snapshot"
	// RejectStale - снимок другого устройства старее уже примененного
	RejectStale RejectReason = "snapshot is older than the last applied one"
	// RejectSupersededEcho - собственная запись, уже перекрытая более новой версией
	RejectSupersededEcho RejectReason = "own write superseded by a newer version"
)

// LoopGuard решает, применять ли входящие снимки и разрешать ли исходящие
// коммиты, чтобы цепочка "удаленное изменение -> локальное сохранение ->
// удаленное изменение" не зацикливалась. Состояние хранится в Replica.
// Не потокобезопасен: вызывающий держит мьютекс движка.
type LoopGuard struct {
	replica  *Replica
	deviceID string
	window   time.Duration
}

// NewLoopGuard creates a guard over the replica's loop state.
// window is the suppression window applied after every accepted snapshot.
func NewLoopGuard(deviceID string, window time.Duration, replica *Replica) *LoopGuard {
	return &LoopGuard{replica: replica, deviceID: deviceID, window: window}
}

// State returns the current state at time now.
func (g *LoopGuard) State(now int64) GuardState {
	switch {
	case g.replica.PendingWriteAt > 0:
		return StatePendingLocalWrite
	case now < g.replica.SuppressUntil:
		return StateSuppressingRemoteEcho
	default:
		return StateIdle
	}
}

// ShouldApply проверяет входящий снимок.
//
// Снимок отклоняется, если:
//   - есть неподтвержденное локальное изменение новее снимка;
//   - снимок записан другим устройством и старее последнего примененного;
//   - снимок - собственная запись с версией ниже уже известной (повторная доставка).
//
// Собственное эхо текущей версии не отклоняется по второму правилу.
func (g *LoopGuard) ShouldApply(doc *models.WorkspaceDocument) (bool, RejectReason) {
	pending := g.replica.PendingWriteAt
	if pending > 0 && pending > doc.LastUpdated {
		return false, RejectPendingNewer
	}

	if doc.LastUpdated < g.replica.LastAppliedRemoteAt && doc.LastWriterID != g.deviceID {
		return false, RejectStale
	}

	if doc.LastWriterID == g.deviceID && doc.Version < g.replica.Version {
		return false, RejectSupersededEcho
	}

	return true, RejectNone
}

// IsOwnEcho reports whether doc was written by this device.
func (g *LoopGuard) IsOwnEcho(doc *models.WorkspaceDocument) bool {
	return doc.LastWriterID == g.deviceID
}

// RecordApplied фиксирует применение снимка: новый базовый отпечаток,
// время снимка и окно подавления. Собственное эхо подтверждает локальную запись.
func (g *LoopGuard) RecordApplied(doc *models.WorkspaceDocument, applied fingerprint.Fingerprint, now int64) {
	r := g.replica
	if doc.LastUpdated > r.LastAppliedRemoteAt {
		r.LastAppliedRemoteAt = doc.LastUpdated
	}
	if doc.Version > r.Version {
		r.Version = doc.Version
	}
	r.LastAppliedFingerprint = applied
	r.SuppressUntil = now + clock.Millis(g.window)

	if g.IsOwnEcho(doc) {
		r.PendingWriteAt = 0
	}
}

// RecordCommitted фиксирует успешную собственную запись. Снимки других
// устройств старее нее больше не применяются.
func (g *LoopGuard) RecordCommitted(doc *models.WorkspaceDocument) {
	r := g.replica
	if doc.LastUpdated > r.LastAppliedRemoteAt {
		r.LastAppliedRemoteAt = doc.LastUpdated
	}
	if doc.Version > r.Version {
		r.Version = doc.Version
	}
}

// MarkPending records a local change at now.
func (g *LoopGuard) MarkPending(now int64) {
	g.replica.PendingWriteAt = now
}

// ClearPending drops the pending marker.
func (g *LoopGuard) ClearPending() {
	g.replica.PendingWriteAt = 0
}

// AllowCommit reports whether an outbound commit may start at now.
func (g *LoopGuard) AllowCommit(now int64) bool {
	return now >= g.replica.SuppressUntil
}

// SuppressUntil returns the end of the current suppression window.
func (g *LoopGuard) SuppressUntil() int64 {
	return g.replica.SuppressUntil
}

// Baseline returns the fingerprint of the last applied or committed content.
func (g *LoopGuard) Baseline() fingerprint.Fingerprint {
	return g.replica.LastAppliedFingerprint
}

// SetBaseline replaces the baseline fingerprint.
func (g *LoopGuard) SetBaseline(fp fingerprint.Fingerprint) {
	g.replica.LastAppliedFingerprint = fp
}

// Reset возвращает защиту в состояние idle после сбоя применения снимка.
func (g *LoopGuard) Reset() {
	g.replica.PendingWriteAt = 0
	g.replica.SuppressUntil = 0
}
