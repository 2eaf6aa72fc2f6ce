// package models defines the data model for the listening-history
// enrichment and playlist selection pipeline.
//
// Persistent entities (ListeningEvent, TrackRecord, AlbumRecord,
// ListenerProfile, PlaylistPick) map onto store tables; CandidateAlbum and
// ResolutionResult are ephemeral values that live for one build cycle.
package models
