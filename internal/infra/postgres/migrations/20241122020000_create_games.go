package migrations

func init() {
	Migrations.MustRegister(
		exec("0002_games.sql"),
		dropTables(
			"game_settlements",
			"round_answers",
			"game_round_questions",
			"game_rounds",
			"game_participants",
			"game_invitations",
			"games",
			"match_queue",
			"game_types",
		),
	)
}
