// Package verify decides whether a candidate credential is still honoured by
// the service that issued it.
//
// A Prober sends one cheap request authenticated with the candidate. The
// response is run through an ordered rule table (see DefaultRules): only an
// authentication failure that says the key itself is unknown proves a key
// dead. Every other answer the service gives means the key was recognised
// and is reported VALID, with the subtype recording what else was wrong.
// Transport failures are INDETERMINATE and retried by the Classifier until
// the attempt ceiling, after which the outcome is frozen as
// INDETERMINATE-FAILED.
package verify
