// Package state connects telebot updates to dialogue machines.
//
// A Stage owns the registered scenes and decides, per conversation, which one
// receives navigation commands and free text. Replier delivers machine replies
// through the Bot API and Serialize keeps updates of one conversation in order.
package state
