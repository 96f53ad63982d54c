package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/scenebot/core/dialogue"
)

func init() {
	register(
		dialogueTransitionsTotal,
		dialogueStepRejectionsTotal,
		dialogueCompletionSeconds,
		dialogueCancelStep,
	)
}

var (
	dialogueTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_transitions_total",
			Help:      "Dialogue transitions by scene and kind (entered/advanced/retreated/completed/canceled/expired).",
		},
		[]string{"scene", "kind"},
	)

	dialogueStepRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_step_rejections_total",
			Help:      "Answers rejected by step validation.",
		},
		[]string{"scene", "step"},
	)

	dialogueCompletionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dialogue_completion_seconds",
			Help:      "Time from entering a dialogue to completing it.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"scene"},
	)

	dialogueCancelStep = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_cancellations_total",
			Help:      "Dialogue cancellations by the step the user was on.",
		},
		[]string{"scene", "step"},
	)
)

// DialogueObserver records machine transitions. The zero value is ready to use.
type DialogueObserver struct{}

var _ dialogue.Observer = DialogueObserver{}

func transition(scene, kind string) {
	dialogueTransitionsTotal.WithLabelValues(norm(scene), kind).Inc()
}

func (DialogueObserver) Entered(scene string)          { transition(scene, "entered") }
func (DialogueObserver) Advanced(scene string, _ int)  { transition(scene, "advanced") }
func (DialogueObserver) Retreated(scene string, _ int) { transition(scene, "retreated") }
func (DialogueObserver) Expired(scene string)          { transition(scene, "expired") }

// Rejected counts a failed validation on step.
func (DialogueObserver) Rejected(scene string, step int) {
	dialogueStepRejectionsTotal.WithLabelValues(norm(scene), strconv.Itoa(step)).Inc()
}

// Completed counts the completion and observes its duration.
func (DialogueObserver) Completed(scene string, took time.Duration) {
	transition(scene, "completed")
	dialogueCompletionSeconds.WithLabelValues(norm(scene)).Observe(took.Seconds())
}

// Canceled counts the cancellation and the step it happened on.
func (DialogueObserver) Canceled(scene string, step int) {
	transition(scene, "canceled")
	dialogueCancelStep.WithLabelValues(norm(scene), strconv.Itoa(step)).Inc()
}
