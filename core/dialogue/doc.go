// Package dialogue implements a step-sequenced dialogue state machine.
//
// A Machine walks one conversation through an ordered Registry of steps, validating
// each answer, persisting the growing Session through a Store and sending prompts
// through a Replier. The package knows nothing about Telegram: chat platforms adapt
// their updates onto Enter, Submit, Back, Cancel and Help.
package dialogue
