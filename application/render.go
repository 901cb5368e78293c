package application

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"settlement/domain/entities"
	"settlement/domain/interfaces"
	"settlement/domain/utils"
)

// Mentions use the platform's <@id> form; adapters without mentions show it raw
func mention(discordID int64) string {
	return fmt.Sprintf("<@%d>", discordID)
}

func renderJoin(joined *interfaces.JoinResult, now time.Time) string {
	session := joined.Session
	verb := "joined"
	if joined.Created {
		verb = "opened"
	}
	return fmt.Sprintf("🎲 %s %s %s round #%d with **%s** on `%s`. Betting closes %s.",
		mention(joined.Wager.DiscordID), verb, session.GameType, session.ID,
		utils.FormatAmount(joined.Wager.Amount), joined.Wager.Selection,
		utils.FormatWait(now, session.ClosesAt))
}

func renderSettlement(settlement *entities.SessionSettlement) string {
	session := settlement.Session
	if session.Status == entities.SessionStatusExpired {
		return fmt.Sprintf("⏱️ %s round #%d closed with no bets.", session.GameType, session.ID)
	}
	return RenderOutcome(session.GameType, session.ID, settlement.Outcome, settlement.Payouts, settlement.TotalStaked, settlement.TotalPaid)
}

// RenderOutcome formats a round's outcome and payouts
func RenderOutcome(gameType entities.GameType, sessionID int64, outcome entities.SessionOutcome, payouts map[int64]int64, staked, paid int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 %s round #%d: **%s**\n", gameType, sessionID, outcome.Label)

	ids := make([]int64, 0, len(payouts))
	for id := range payouts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if payouts[ids[i]] != payouts[ids[j]] {
			return payouts[ids[i]] > payouts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		if payouts[id] > 0 {
			fmt.Fprintf(&b, "• %s wins **%s**\n", mention(id), utils.FormatAmount(payouts[id]))
		} else {
			fmt.Fprintf(&b, "• %s loses\n", mention(id))
		}
	}
	fmt.Fprintf(&b, "Staked %s, paid %s", utils.FormatAmount(staked), utils.FormatAmount(paid))
	return b.String()
}

func renderBalances(b *entities.Balances) string {
	return fmt.Sprintf("💰 Cash: **%s**\n🏦 Bank: **%s**\n💳 Credit: %s owed of %s (%s available)\nNet worth: %s",
		utils.FormatAmount(b.Cash),
		utils.FormatAmount(b.Bank),
		utils.FormatAmount(b.CreditDebt),
		utils.FormatAmount(b.CreditLimit),
		utils.FormatAmount(b.AvailableCredit()),
		utils.FormatAmount(b.NetWorth()))
}

func renderHistory(entries []*entities.LedgerEntry) string {
	if len(entries) == 0 {
		return "No transactions yet."
	}
	var b strings.Builder
	b.WriteString("📜 Recent transactions\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "`%s` %s\n", e.CreatedAt.UTC().Format("01-02 15:04"), e.Describe())
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRounds(sessions []*entities.BettingSession) string {
	if len(sessions) == 0 {
		return "No rounds have been played at this table."
	}
	var b strings.Builder
	b.WriteString("🎲 Recent rounds\n")
	for _, session := range sessions {
		result := string(session.Status)
		if session.Outcome != nil {
			result = session.Outcome.Label
		}
		fmt.Fprintf(&b, "#%d %s `%s` %d bets, %s\n",
			session.ID, session.GameType, session.OpenedAt.UTC().Format("01-02 15:04"), session.WagerCount, result)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMove(moved *interfaces.MoveResult, from, to entities.Instrument, amount int64) string {
	msg := fmt.Sprintf("Moved **%s** from %s to %s.", utils.FormatAmount(amount), from, to)
	if c := moved.Credit; c != nil && to.IsCredit() {
		if repaid := c.BalanceBefore - c.BalanceAfter; repaid < amount {
			msg += fmt.Sprintf(" Only %s was owed, the rest went to cash.", utils.FormatAmount(repaid))
		}
	}
	return msg
}

func renderPayment(senderID, receiverID, amount int64) string {
	return fmt.Sprintf("💸 %s paid %s **%s**.", mention(senderID), mention(receiverID), utils.FormatAmount(amount))
}

func renderQuote(t *entities.DeferredTransfer) string {
	return fmt.Sprintf("📮 Send **%s** to %s by post? Fee: %s (total %s). Arrives %s.",
		utils.FormatAmount(t.Amount), mention(t.ReceiverID), utils.FormatAmount(t.Fee),
		utils.FormatAmount(t.TotalDebit()), utils.FormatWait(time.Now(), t.ReleaseAt))
}

func renderScheduled(t *entities.DeferredTransfer, now time.Time) string {
	switch t.Kind {
	case entities.TransferKindDeposit:
		return fmt.Sprintf("🏦 Deposit #%d of **%s** lands in your bank %s.", t.ID, utils.FormatAmount(t.Amount), utils.FormatWait(now, t.ReleaseAt))
	case entities.TransferKindInvestment:
		return fmt.Sprintf("📈 Investment #%d of **%s** pays %s %s.", t.ID, utils.FormatAmount(t.Amount), utils.FormatAmount(t.Payout), utils.FormatWait(now, t.ReleaseAt))
	default:
		return fmt.Sprintf("📮 Transfer #%d of **%s** to %s arrives %s.", t.ID, utils.FormatAmount(t.Amount), mention(t.ReceiverID), utils.FormatWait(now, t.ReleaseAt))
	}
}

func renderCancelled(t *entities.DeferredTransfer) string {
	return fmt.Sprintf("Transfer #%d cancelled, **%s** refunded.", t.ID, utils.FormatAmount(t.TotalDebit()))
}

func renderPending(transfers []*entities.DeferredTransfer, now time.Time) string {
	if len(transfers) == 0 {
		return "You have no pending transfers."
	}
	var b strings.Builder
	b.WriteString("⏳ Pending transfers\n")
	for _, t := range transfers {
		fmt.Fprintf(&b, "#%d %s **%s** → %s, %s\n", t.ID, t.Kind, utils.FormatAmount(t.Amount), mention(t.ReceiverID), utils.FormatWait(now, t.ReleaseAt))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderReleased formats the arrival notice of a deferred transfer
func RenderReleased(kind entities.TransferKind, transferID, receiverID, payout int64) string {
	switch kind {
	case entities.TransferKindDeposit:
		return fmt.Sprintf("🏦 %s your deposit #%d of **%s** has landed in your bank.", mention(receiverID), transferID, utils.FormatAmount(payout))
	case entities.TransferKindInvestment:
		return fmt.Sprintf("📈 %s your investment #%d matured and paid **%s**.", mention(receiverID), transferID, utils.FormatAmount(payout))
	default:
		return fmt.Sprintf("📮 %s you received **%s** by post (#%d).", mention(receiverID), utils.FormatAmount(payout), transferID)
	}
}
