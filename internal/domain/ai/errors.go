package ai

import "errors"

// ErrUnreachable indicates the connectivity probe against the completion
// endpoint failed before the scan pipeline could start. The message text is
// user-facing and feeds the orchestrator's substring classifier.
var ErrUnreachable = errors.New("Impossible de se connecter à l'API. Vérifiez votre clé API et votre connexion internet.")
